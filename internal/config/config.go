package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	// Temporal mTLS (optional).
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	// vSphere endpoint used for maintenance mode and inventory discovery.
	VSphereURL      string
	VSphereUser     string
	VSpherePassword string
	VSphereInsecure bool

	// Default management-controller credentials for hosts without their own.
	BMCUsername string
	BMCPassword string

	// DefaultMaxConcurrent bounds concurrent host updates per job firing
	// when the schedule has no override.
	DefaultMaxConcurrent int

	// WebhookURL receives job completion notifications when set.
	// WebhookTemplate selects the payload shape, "generic" or "slack".
	WebhookURL      string
	WebhookTemplate string

	// SecretKeyBase64 is the base64-encoded AES key for credentials at rest.
	SecretKeyBase64 string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		VSphereURL:            getEnv("VSPHERE_URL", ""),
		VSphereUser:           getEnv("VSPHERE_USER", ""),
		VSpherePassword:       getEnv("VSPHERE_PASSWORD", ""),
		VSphereInsecure:       getEnvBool("VSPHERE_INSECURE", true),
		BMCUsername:           getEnv("BMC_USERNAME", "root"),
		BMCPassword:           getEnv("BMC_PASSWORD", "calvin"),
		DefaultMaxConcurrent:  getEnvInt("MAX_CONCURRENT_UPDATES", 2),
		WebhookURL:            getEnv("WEBHOOK_URL", ""),
		WebhookTemplate:       getEnv("WEBHOOK_TEMPLATE", "generic"),
		SecretKeyBase64:       getEnv("SECRET_KEY", ""),
	}

	return cfg, nil
}

// Validate checks that the fields required by the given service are set.
func (c *Config) Validate(service string) error {
	var missing []string

	need := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch service {
	case "core-api":
		need(c.DatabaseURL, "DATABASE_URL")
		need(c.TemporalAddress, "TEMPORAL_ADDRESS")
		need(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
	case "worker":
		need(c.DatabaseURL, "DATABASE_URL")
		need(c.TemporalAddress, "TEMPORAL_ADDRESS")
	default:
		return fmt.Errorf("unknown service %q", service)
	}

	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set or both be empty")
	}

	if c.DefaultMaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_UPDATES must be at least 1")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

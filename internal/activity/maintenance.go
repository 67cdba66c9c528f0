package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openfleet/maestro/internal/config"
	"github.com/openfleet/maestro/internal/crypto"
	"github.com/openfleet/maestro/internal/vsphere"
)

const (
	enterMaintenanceTimeout = 30 * time.Minute
	exitMaintenanceTimeout  = 10 * time.Minute
)

// VSphereSession is the subset of the vSphere client used by activities.
type VSphereSession interface {
	EnterMaintenance(ctx context.Context, hostname string, timeout time.Duration) error
	ExitMaintenance(ctx context.Context, hostname string, timeout time.Duration) error
	ListHosts(ctx context.Context) ([]vsphere.HostInfo, error)
	Close(ctx context.Context) error
}

// VSphere contains activities that drive vCenter: maintenance mode
// transitions around firmware updates and inventory discovery.
type VSphere struct {
	db      DB
	cfg     *config.Config
	connect func(ctx context.Context, url, username, password string, insecure bool) (VSphereSession, error)
}

// NewVSphere creates a VSphere activity struct.
func NewVSphere(db DB, cfg *config.Config) *VSphere {
	return &VSphere{
		db:  db,
		cfg: cfg,
		connect: func(ctx context.Context, url, username, password string, insecure bool) (VSphereSession, error) {
			return vsphere.Connect(ctx, url, username, password, insecure)
		},
	}
}

// NewVSphereWithConnect creates a VSphere activity struct with a custom
// connection function. Used in tests.
func NewVSphereWithConnect(db DB, cfg *config.Config, connect func(ctx context.Context, url, username, password string, insecure bool) (VSphereSession, error)) *VSphere {
	return &VSphere{db: db, cfg: cfg, connect: connect}
}

// session resolves credentials for the named vCenter and opens a session.
// An empty name, or a name with no configured row, falls back to the
// fleet-wide vCenter from the environment.
func (a *VSphere) session(ctx context.Context, vcenterName string) (VSphereSession, error) {
	url, user, pass := a.cfg.VSphereURL, a.cfg.VSphereUser, a.cfg.VSpherePassword

	if vcenterName != "" {
		var passwordEnc string
		err := a.db.QueryRow(ctx,
			`SELECT url, username, password_enc FROM vcenters WHERE name = $1`, vcenterName,
		).Scan(&url, &user, &passwordEnc)
		switch err {
		case nil:
			plain, err := crypto.Decrypt(passwordEnc, a.cfg.SecretKeyBase64)
			if err != nil {
				return nil, fmt.Errorf("decrypt vCenter password: %w", err)
			}
			pass = string(plain)
		case pgx.ErrNoRows:
			// fall through to the environment credentials
		default:
			return nil, fmt.Errorf("look up vCenter %s: %w", vcenterName, err)
		}
	}

	if url == "" {
		return nil, fmt.Errorf("no vCenter configured for %q", vcenterName)
	}
	return a.connect(ctx, url, user, pass, a.cfg.VSphereInsecure)
}

// MaintenanceParams holds the parameters for the maintenance activities.
type MaintenanceParams struct {
	Hostname string `json:"hostname"`
	VCenter  string `json:"vcenter"`
}

// EnterMaintenanceMode evacuates the host and puts it in maintenance mode.
func (a *VSphere) EnterMaintenanceMode(ctx context.Context, params MaintenanceParams) error {
	sess, err := a.session(ctx, params.VCenter)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	return sess.EnterMaintenance(ctx, params.Hostname, enterMaintenanceTimeout)
}

// ExitMaintenanceMode returns the host to service.
func (a *VSphere) ExitMaintenanceMode(ctx context.Context, params MaintenanceParams) error {
	sess, err := a.session(ctx, params.VCenter)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	return sess.ExitMaintenance(ctx, params.Hostname, exitMaintenanceTimeout)
}

// DiscoverHosts lists the ESXi hosts visible in the named vCenter.
func (a *VSphere) DiscoverHosts(ctx context.Context, vcenterName string) ([]vsphere.HostInfo, error) {
	sess, err := a.session(ctx, vcenterName)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)
	return sess.ListHosts(ctx)
}

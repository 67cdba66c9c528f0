package redfish

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Task states reported by Redfish task monitors.
const (
	TaskStateCompleted = "Completed"
	TaskStateRunning   = "Running"
	TaskStateStarting  = "Starting"
	TaskStatePending   = "Pending"
	TaskStateException = "Exception"
	TaskStateKilled    = "Killed"
)

const simpleUpdatePath = "/redfish/v1/UpdateService/Actions/UpdateService.SimpleUpdate"

// StatusError is a non-2xx response from the BMC.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("BMC returned %d: %s", e.Code, e.Body)
}

// Transient reports whether err is worth retrying: connection failures,
// 5xx responses, and 429 throttling. Other HTTP errors (bad credentials,
// malformed request, unknown resource) will not heal on retry.
func Transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// Client talks to a single BMC over the Redfish REST API. iDRAC and most
// other vendor BMCs use self-signed certificates, so verification is off.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a Redfish client for the BMC at addr (host or host:port).
func NewClient(addr, username, password string) *Client {
	return &Client{
		baseURL:  "https://" + addr,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// NewClientForURL creates a client against a full base URL. Used in tests.
func NewClientForURL(baseURL, username, password string) *Client {
	c := NewClient("", username, password)
	c.baseURL = baseURL
	return c
}

// TaskStatus is the state of a firmware update task on the BMC.
type TaskStatus struct {
	State           string
	PercentComplete int
	Message         string
}

// Terminal reports whether the task has finished, successfully or not.
func (t TaskStatus) Terminal() bool {
	switch t.State {
	case TaskStateCompleted, TaskStateException, TaskStateKilled:
		return true
	}
	return false
}

// SubmitUpdate posts a SimpleUpdate action for the firmware at imageURI and
// returns the task monitor path from the Location header.
func (c *Client) SubmitUpdate(ctx context.Context, imageURI string) (string, error) {
	payload, err := json.Marshal(map[string]string{"ImageURI": imageURI})
	if err != nil {
		return "", fmt.Errorf("marshal update request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, simpleUpdatePath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	monitor := resp.Header.Get("Location")
	if monitor == "" {
		return "", fmt.Errorf("update accepted but no task monitor in Location header")
	}
	return monitor, nil
}

// GetTask fetches the current state of a task monitor.
func (c *Client) GetTask(ctx context.Context, monitor string) (TaskStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, monitor, nil)
	if err != nil {
		return TaskStatus{}, err
	}
	defer resp.Body.Close()

	// iDRAC returns 202 while the task is running and 200 once terminal.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return TaskStatus{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var body struct {
		TaskState       string `json:"TaskState"`
		PercentComplete int    `json:"PercentComplete"`
		Messages        []struct {
			Message string `json:"Message"`
		} `json:"Messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return TaskStatus{}, fmt.Errorf("decode task status: %w", err)
	}

	st := TaskStatus{State: body.TaskState, PercentComplete: body.PercentComplete}
	if len(body.Messages) > 0 {
		st.Message = body.Messages[len(body.Messages)-1].Message
	}
	return st, nil
}

// SystemInfo is the subset of the Redfish system resource the engine uses.
type SystemInfo struct {
	Model       string
	PowerState  string
	BIOSVersion string
}

// GetSystem fetches the first computer system on the BMC. Used by the
// fleet health sweep to confirm the BMC is reachable and responsive.
func (c *Client) GetSystem(ctx context.Context) (SystemInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/redfish/v1/Systems/System.Embedded.1", nil)
	if err != nil {
		return SystemInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return SystemInfo{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var body struct {
		Model       string `json:"Model"`
		PowerState  string `json:"PowerState"`
		BiosVersion string `json:"BiosVersion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SystemInfo{}, fmt.Errorf("decode system resource: %w", err)
	}
	return SystemInfo{Model: body.Model, PowerState: body.PowerState, BIOSVersion: body.BiosVersion}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("BMC request: %w", err)
	}
	return resp, nil
}

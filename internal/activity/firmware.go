package activity

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/openfleet/maestro/internal/redfish"
)

// Error types attached to ApplicationErrors from BMC activities. The update
// workflow runs these activities with retries disabled and decides itself,
// based on the type, whether another attempt is worthwhile.
const (
	ErrTypeTransient = "TRANSIENT"
	ErrTypePermanent = "PERMANENT"
)

// BMCClient is the subset of the Redfish client used by firmware activities.
type BMCClient interface {
	SubmitUpdate(ctx context.Context, imageURI string) (string, error)
	GetTask(ctx context.Context, monitor string) (redfish.TaskStatus, error)
	GetSystem(ctx context.Context) (redfish.SystemInfo, error)
}

// Firmware contains activities that talk to host BMCs.
type Firmware struct {
	newClient func(addr string) BMCClient
}

// NewFirmware creates a Firmware activity struct. Every BMC shares the
// fleet-wide credentials.
func NewFirmware(bmcUsername, bmcPassword string) *Firmware {
	return &Firmware{
		newClient: func(addr string) BMCClient {
			return redfish.NewClient(addr, bmcUsername, bmcPassword)
		},
	}
}

// NewFirmwareWithFactory creates a Firmware activity struct with a custom
// client factory. Used in tests.
func NewFirmwareWithFactory(factory func(addr string) BMCClient) *Firmware {
	return &Firmware{newClient: factory}
}

func classify(msg string, err error) error {
	if redfish.Transient(err) {
		return temporal.NewApplicationError(fmt.Sprintf("%s: %v", msg, err), ErrTypeTransient)
	}
	return temporal.NewApplicationError(fmt.Sprintf("%s: %v", msg, err), ErrTypePermanent)
}

// SubmitUpdateParams holds the parameters for SubmitFirmwareUpdate.
type SubmitUpdateParams struct {
	BMCAddr  string `json:"bmc_addr"`
	ImageURI string `json:"image_uri"`
}

// SubmitFirmwareUpdate starts a SimpleUpdate on the BMC and returns the
// task monitor path to poll.
func (a *Firmware) SubmitFirmwareUpdate(ctx context.Context, params SubmitUpdateParams) (string, error) {
	monitor, err := a.newClient(params.BMCAddr).SubmitUpdate(ctx, params.ImageURI)
	if err != nil {
		return "", classify("submit firmware update", err)
	}
	return monitor, nil
}

// CheckUpdateTaskParams holds the parameters for CheckUpdateTask.
type CheckUpdateTaskParams struct {
	BMCAddr string `json:"bmc_addr"`
	Monitor string `json:"monitor"`
}

// CheckUpdateTask polls the BMC task monitor once.
func (a *Firmware) CheckUpdateTask(ctx context.Context, params CheckUpdateTaskParams) (redfish.TaskStatus, error) {
	st, err := a.newClient(params.BMCAddr).GetTask(ctx, params.Monitor)
	if err != nil {
		return redfish.TaskStatus{}, classify("check update task", err)
	}
	return st, nil
}

// BMCHealth is the result of a health probe against one BMC.
type BMCHealth struct {
	Reachable  bool   `json:"reachable"`
	Model      string `json:"model"`
	PowerState string `json:"power_state"`
	Detail     string `json:"detail"`
}

// CheckBMCHealth probes the BMC's system resource. Unreachable BMCs are a
// result, not an error, so the health sweep keeps going.
func (a *Firmware) CheckBMCHealth(ctx context.Context, bmcAddr string) (BMCHealth, error) {
	info, err := a.newClient(bmcAddr).GetSystem(ctx)
	if err != nil {
		return BMCHealth{Reachable: false, Detail: err.Error()}, nil
	}
	return BMCHealth{
		Reachable:  true,
		Model:      info.Model,
		PowerState: info.PowerState,
		Detail:     fmt.Sprintf("%s, power %s", info.Model, info.PowerState),
	}, nil
}

package activity

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/openfleet/maestro/internal/redfish"
)

type fakeBMC struct {
	submitMonitor string
	submitErr     error
	task          redfish.TaskStatus
	taskErr       error
	system        redfish.SystemInfo
	systemErr     error

	submitCalls int
}

func (f *fakeBMC) SubmitUpdate(ctx context.Context, imageURI string) (string, error) {
	f.submitCalls++
	return f.submitMonitor, f.submitErr
}

func (f *fakeBMC) GetTask(ctx context.Context, monitor string) (redfish.TaskStatus, error) {
	return f.task, f.taskErr
}

func (f *fakeBMC) GetSystem(ctx context.Context) (redfish.SystemInfo, error) {
	return f.system, f.systemErr
}

func newFirmwareWith(bmc *fakeBMC) *Firmware {
	return NewFirmwareWithFactory(func(addr string) BMCClient { return bmc })
}

func TestSubmitFirmwareUpdate_Success(t *testing.T) {
	bmc := &fakeBMC{submitMonitor: "/redfish/v1/TaskService/Tasks/JID_1"}
	a := newFirmwareWith(bmc)

	monitor, err := a.SubmitFirmwareUpdate(context.Background(), SubmitUpdateParams{
		BMCAddr:  "10.0.0.1",
		ImageURI: "http://fw.example.com/bios.bin",
	})
	require.NoError(t, err)
	assert.Equal(t, "/redfish/v1/TaskService/Tasks/JID_1", monitor)
	assert.Equal(t, 1, bmc.submitCalls)
}

func TestSubmitFirmwareUpdate_ServerError_Transient(t *testing.T) {
	bmc := &fakeBMC{submitErr: &redfish.StatusError{Code: http.StatusServiceUnavailable}}
	a := newFirmwareWith(bmc)

	_, err := a.SubmitFirmwareUpdate(context.Background(), SubmitUpdateParams{BMCAddr: "10.0.0.1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrTypeTransient, appErr.Type())
}

func TestSubmitFirmwareUpdate_ClientError_Permanent(t *testing.T) {
	bmc := &fakeBMC{submitErr: &redfish.StatusError{Code: http.StatusBadRequest, Body: "invalid ImageURI"}}
	a := newFirmwareWith(bmc)

	_, err := a.SubmitFirmwareUpdate(context.Background(), SubmitUpdateParams{BMCAddr: "10.0.0.1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrTypePermanent, appErr.Type())
}

func TestSubmitFirmwareUpdate_NetworkError_Transient(t *testing.T) {
	bmc := &fakeBMC{submitErr: errors.New("dial tcp: connection refused")}
	a := newFirmwareWith(bmc)

	_, err := a.SubmitFirmwareUpdate(context.Background(), SubmitUpdateParams{BMCAddr: "10.0.0.1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrTypeTransient, appErr.Type())
}

func TestCheckUpdateTask(t *testing.T) {
	bmc := &fakeBMC{task: redfish.TaskStatus{State: redfish.TaskStateRunning, PercentComplete: 55}}
	a := newFirmwareWith(bmc)

	st, err := a.CheckUpdateTask(context.Background(), CheckUpdateTaskParams{
		BMCAddr: "10.0.0.1",
		Monitor: "/redfish/v1/TaskService/Tasks/JID_1",
	})
	require.NoError(t, err)
	assert.Equal(t, redfish.TaskStateRunning, st.State)
	assert.Equal(t, 55, st.PercentComplete)
}

func TestCheckBMCHealth_Reachable(t *testing.T) {
	bmc := &fakeBMC{system: redfish.SystemInfo{Model: "PowerEdge R740", PowerState: "On"}}
	a := newFirmwareWith(bmc)

	h, err := a.CheckBMCHealth(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, h.Reachable)
	assert.Equal(t, "PowerEdge R740", h.Model)
}

func TestCheckBMCHealth_Unreachable_NotAnError(t *testing.T) {
	bmc := &fakeBMC{systemErr: errors.New("dial tcp: i/o timeout")}
	a := newFirmwareWith(bmc)

	h, err := a.CheckBMCHealth(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, h.Reachable)
	assert.Contains(t, h.Detail, "timeout")
}

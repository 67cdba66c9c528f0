package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/maestro/internal/model"
)

// ---------- Mock DB ----------

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Rows ----------

type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error { return m.scanFunc(dest...) }

func updateTag(n int) pgconn.CommandTag {
	if n == 0 {
		return pgconn.NewCommandTag("UPDATE 0")
	}
	return pgconn.NewCommandTag("UPDATE 1")
}

// ---------- AcquireHostLease ----------

func leaseOwnerRow(owner *string) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(**string)) = owner
		return nil
	}}
}

func TestFleetDB_AcquireHostLease_Acquired(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(1), nil)

	ok, err := a.AcquireHostLease(ctx, AcquireLeaseParams{HostID: "test-host-1", TaskID: "test-task-1"})
	require.NoError(t, err)
	assert.True(t, ok)
	db.AssertExpectations(t)
}

func TestFleetDB_AcquireHostLease_HeldByAnotherTask(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	other := "test-task-2"
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(leaseOwnerRow(&other))

	ok, err := a.AcquireHostLease(ctx, AcquireLeaseParams{HostID: "test-host-1", TaskID: "test-task-1"})
	require.NoError(t, err)
	assert.False(t, ok)
	db.AssertExpectations(t)
}

func TestFleetDB_AcquireHostLease_ReacquiredBySameTask(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	// The first attempt committed the UPDATE but its result never reached
	// the workflow. The retry sees UPDATING, finds its own task recorded as
	// owner, and still holds the lease.
	owner := "test-task-1"
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(leaseOwnerRow(&owner))

	ok, err := a.AcquireHostLease(ctx, AcquireLeaseParams{HostID: "test-host-1", TaskID: "test-task-1"})
	require.NoError(t, err)
	assert.True(t, ok)
	db.AssertExpectations(t)
}

func TestFleetDB_AcquireHostLease_HostNotUpdating(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	// The lease was released between the UPDATE and the owner check.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	ok, err := a.AcquireHostLease(ctx, AcquireLeaseParams{HostID: "test-host-1", TaskID: "test-task-1"})
	require.NoError(t, err)
	assert.False(t, ok)
	db.AssertExpectations(t)
}

func TestFleetDB_AcquireHostLease_Error(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection lost"))

	_, err := a.AcquireHostLease(ctx, AcquireLeaseParams{HostID: "test-host-1", TaskID: "test-task-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire host lease")
	db.AssertExpectations(t)
}

// ---------- GetScheduleContext ----------

func TestFleetDB_GetScheduleContext_GroupTarget(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	groupID := "test-group-1"
	cron := "0 3 * * 1-5"
	now := time.Now().Truncate(time.Microsecond)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-schedule-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "test-schedule-1"
			*(dest[1].(*string)) = "weekly-bios"
			*(dest[2].(*string)) = "http://fw.example.com/bios.bin"
			*(dest[3].(**string)) = &groupID
			*(dest[4].(**string)) = &cron
			*(dest[5].(**int)) = nil
			*(dest[6].(**int)) = nil
			*(dest[7].(*bool)) = true
			*(dest[8].(*bool)) = false
			*(dest[9].(*time.Time)) = now
			*(dest[10].(*time.Time)) = now
			return nil
		}})

	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = "test-host-1"
			*(dest[1].(*string)) = "esx01.example.com"
			*(dest[2].(*string)) = "10.0.0.1"
			*(dest[7].(*string)) = model.HostStatusOK
			*(dest[9].(*time.Time)) = now
			*(dest[10].(*time.Time)) = now
			return nil
		},
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{groupID}).Return(rows, nil)

	got, err := a.GetScheduleContext(ctx, "test-schedule-1")
	require.NoError(t, err)
	assert.Equal(t, "weekly-bios", got.Schedule.Name)
	require.Len(t, got.Hosts, 1)
	assert.Equal(t, "esx01.example.com", got.Hosts[0].Hostname)
	db.AssertExpectations(t)
}

func TestFleetDB_GetScheduleContext_NoGroupTargetsAllHosts(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	interval := 1440
	now := time.Now().Truncate(time.Microsecond)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-schedule-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "test-schedule-1"
			*(dest[1].(*string)) = "fleet-wide"
			*(dest[2].(*string)) = "http://fw.example.com/bios.bin"
			*(dest[5].(**int)) = &interval
			*(dest[7].(*bool)) = true
			*(dest[9].(*time.Time)) = now
			*(dest[10].(*time.Time)) = now
			return nil
		}})

	// no group filter, so the host query takes no arguments
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{}).Return(newMockRows(), nil)

	got, err := a.GetScheduleContext(ctx, "test-schedule-1")
	require.NoError(t, err)
	assert.Empty(t, got.Hosts)
	db.AssertExpectations(t)
}

// ---------- CompleteTask ----------

func TestFleetDB_CompleteTask(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(1), nil)

	err := a.CompleteTask(ctx, CompleteTaskParams{
		TaskID:  "test-task-1",
		Status:  model.TaskStatusSuccess,
		Message: "firmware update completed",
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestFleetDB_CompleteTask_AlreadyTerminal(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	// the status guard in the UPDATE matches no rows
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)

	err := a.CompleteTask(ctx, CompleteTaskParams{
		TaskID: "test-task-1",
		Status: model.TaskStatusFailed,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- FinalizeJob ----------

func TestFleetDB_FinalizeJob_Partial(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	rows := newMockRows(
		func(dest ...any) error { *(dest[0].(*string)) = model.TaskStatusSuccess; return nil },
		func(dest ...any) error { *(dest[0].(*string)) = model.TaskStatusFailed; return nil },
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"test-job-1"}).Return(rows, nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(1), nil)

	final, err := a.FinalizeJob(ctx, "test-job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPartial, final)
	db.AssertExpectations(t)
}

func TestFleetDB_FinalizeJob_AlreadyFinal(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	rows := newMockRows(
		func(dest ...any) error { *(dest[0].(*string)) = model.TaskStatusSuccess; return nil },
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"test-job-1"}).Return(rows, nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-job-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = model.JobStatusFailed
			return nil
		}})

	final, err := a.FinalizeJob(ctx, "test-job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, final)
	db.AssertExpectations(t)
}

// ---------- SyncDiscoveredHost ----------

func TestFleetDB_SyncDiscoveredHost(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"),
		[]any{"vc01", "prod-cluster", "esx01.example.com"}).Return(updateTag(1), nil)

	matched, err := a.SyncDiscoveredHost(ctx, SyncDiscoveredHostParams{
		Hostname: "esx01.example.com",
		VCenter:  "vc01",
		Cluster:  "prod-cluster",
	})
	require.NoError(t, err)
	assert.True(t, matched)
	db.AssertExpectations(t)
}

func TestFleetDB_SyncDiscoveredHost_UnknownHost(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateTag(0), nil)

	matched, err := a.SyncDiscoveredHost(ctx, SyncDiscoveredHostParams{
		Hostname: "rogue.example.com",
	})
	require.NoError(t, err)
	assert.False(t, matched)
	db.AssertExpectations(t)
}

// ---------- GetJobSummary ----------

func TestFleetDB_GetJobSummary(t *testing.T) {
	db := &mockDB{}
	a := NewFleetDB(db)
	ctx := context.Background()

	start := time.Now().Truncate(time.Microsecond)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-job-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "test-job-1"
			*(dest[1].(*string)) = model.JobStatusPartial
			*(dest[2].(*string)) = "2 hosts failed"
			*(dest[3].(*time.Time)) = start
			*(dest[4].(*string)) = "weekly-bios"
			return nil
		}})

	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = model.TaskStatusSuccess
			*(dest[1].(*int)) = 6
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = model.TaskStatusFailed
			*(dest[1].(*int)) = 2
			return nil
		},
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"test-job-1"}).Return(rows, nil)

	sum, err := a.GetJobSummary(ctx, "test-job-1")
	require.NoError(t, err)
	assert.Equal(t, "weekly-bios", sum.ScheduleName)
	assert.Equal(t, 6, sum.TaskCounts[model.TaskStatusSuccess])
	assert.Equal(t, 2, sum.TaskCounts[model.TaskStatusFailed])
	db.AssertExpectations(t)
}

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/maestro/internal/model"
)

func strPtr(s string) *string { return &s }

// ---------- Create ----------

func TestScheduleService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	schedule := &model.Schedule{
		Name:         "weekday-3am",
		FirmwarePath: "http://fw.example.com/bios.bin",
		CronExpr:     strPtr("0 3 * * 1-5"),
		Enabled:      true,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("INSERT 0 1"), nil)

	err := svc.Create(ctx, schedule)
	require.NoError(t, err)
	assert.NotEmpty(t, schedule.ID)
	db.AssertExpectations(t)
}

// ---------- ListEnabled ----------

func TestScheduleService_ListEnabled_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	cron := "0 3 * * 1-5"
	rows := newMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "test-schedule-1"
		*(dest[1].(*string)) = "weekday-3am"
		*(dest[2].(*string)) = "http://fw.example.com/bios.bin"
		*(dest[4].(**string)) = &cron
		*(dest[7].(*bool)) = true
		*(dest[9].(*time.Time)) = now
		*(dest[10].(*time.Time)) = now
		return nil
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	result, err := svc.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "weekday-3am", result[0].Name)
	assert.True(t, result[0].Enabled)
	db.AssertExpectations(t)
}

func TestScheduleService_ListEnabled_QueryError(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection lost"))

	result, err := svc.ListEnabled(ctx)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "list enabled schedules")
	db.AssertExpectations(t)
}

// ---------- Toggle ----------

func TestScheduleService_Toggle_ReturnsNewValue(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*bool)) = false
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	enabled, err := svc.Toggle(ctx, "test-schedule-1")
	require.NoError(t, err)
	assert.False(t, enabled)
	db.AssertExpectations(t)
}

func TestScheduleService_Toggle_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("no rows in result set")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := svc.Toggle(ctx, "nonexistent-schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "toggle schedule")
	db.AssertExpectations(t)
}

// ---------- Update ----------

func TestScheduleService_Update_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	schedule := &model.Schedule{ID: "nonexistent-schedule", Name: "weekday-3am"}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("UPDATE 0"), nil)

	err := svc.Update(ctx, schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	db.AssertExpectations(t)
}

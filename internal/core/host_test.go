package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/model"
)

func execTag(tag string) pgconn.CommandTag {
	return pgconn.NewCommandTag(tag)
}

// ---------- Create ----------

func TestHostService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	vcenter := "vc01"
	host := &model.Host{
		Hostname: "esx01.example.com",
		BMCAddr:  "10.0.0.1",
		VCenter:  &vcenter,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("INSERT 0 1"), nil)

	err := svc.Create(ctx, host)
	require.NoError(t, err)
	assert.NotEmpty(t, host.ID)
	assert.Equal(t, model.HostStatusUnknown, host.LastStatus)
	db.AssertExpectations(t)
}

func TestHostService_Create_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	host := &model.Host{Hostname: "esx01.example.com", BMCAddr: "10.0.0.1"}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("unique violation"))

	err := svc.Create(ctx, host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create host")
	db.AssertExpectations(t)
}

// ---------- GetByID ----------

func TestHostService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "test-host-1"
		*(dest[1].(*string)) = "esx01.example.com"
		*(dest[2].(*string)) = "10.0.0.1"
		*(dest[7].(*string)) = model.HostStatusOK
		*(dest[9].(*time.Time)) = now
		*(dest[10].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "test-host-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "esx01.example.com", result.Hostname)
	assert.Equal(t, model.HostStatusOK, result.LastStatus)
	db.AssertExpectations(t)
}

func TestHostService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("no rows in result set")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "nonexistent-host")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "get host")
	db.AssertExpectations(t)
}

// ---------- List ----------

func TestHostService_List_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
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
		func(dest ...any) error {
			*(dest[0].(*string)) = "test-host-2"
			*(dest[1].(*string)) = "esx02.example.com"
			*(dest[2].(*string)) = "10.0.0.2"
			*(dest[7].(*string)) = model.HostStatusError
			*(dest[9].(*time.Time)) = now
			*(dest[10].(*time.Time)) = now
			return nil
		},
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	result, hasMore, err := svc.List(ctx, request.ListParams{Limit: 50})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, result, 2)
	assert.Equal(t, "esx01.example.com", result[0].Hostname)
	assert.Equal(t, "esx02.example.com", result[1].Hostname)
	db.AssertExpectations(t)
}

func TestHostService_List_StatusFilterInQuery(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "last_status = $1")
	}), mock.Anything).Return(newEmptyMockRows(), nil)

	_, _, err := svc.List(ctx, request.ListParams{Limit: 50, Status: model.HostStatusError})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- Update / Delete ----------

func TestHostService_Update_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	host := &model.Host{ID: "nonexistent-host", Hostname: "esx01.example.com", BMCAddr: "10.0.0.1"}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("UPDATE 0"), nil)

	err := svc.Update(ctx, host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	db.AssertExpectations(t)
}

func TestHostService_Delete_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("DELETE 1"), nil)

	err := svc.Delete(ctx, "test-host-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestHostService_Delete_UpdatingHostRefused(t *testing.T) {
	db := &mockDB{}
	svc := NewHostService(db)
	ctx := context.Background()

	// the guard in the WHERE clause matches no row for an UPDATING host
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("DELETE 0"), nil)

	err := svc.Delete(ctx, "test-host-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currently updating")
	db.AssertExpectations(t)
}

package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/maestro/internal/model"
)

// ---------- Create ----------

func TestAPIKeyService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	var storedHash string
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			storedHash = args.Get(2).([]any)[2].(string)
		}).Return(execTag("INSERT 0 1"), nil)

	now := time.Now().Truncate(time.Microsecond)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*time.Time)) = now
			return nil
		}})

	key, rawKey, err := svc.Create(ctx, "ops-automation", model.RoleOperator)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, model.RoleOperator, key.Role)
	assert.Equal(t, now, key.CreatedAt)

	// only the hash touches the database
	assert.True(t, strings.HasPrefix(rawKey, "mst_"))
	assert.Equal(t, HashKey(rawKey), storedHash)
	assert.NotContains(t, storedHash, rawKey)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Create_UnknownRole(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)

	_, _, err := svc.Create(context.Background(), "bad", "superuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

// ---------- Authenticate ----------

func TestAPIKeyService_Authenticate_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	rawKey := "mst_deadbeef"
	var queriedHash string
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			queriedHash = args.Get(2).([]any)[0].(string)
		}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "test-key-1"
			*(dest[1].(*string)) = "ops-automation"
			*(dest[2].(*string)) = model.RoleAdmin
			return nil
		}})

	key, err := svc.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, model.RoleAdmin, key.Role)
	assert.Equal(t, HashKey(rawKey), queriedHash)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Authenticate_UnknownKey(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	key, err := svc.Authenticate(ctx, "mst_unknown")
	require.NoError(t, err)
	assert.Nil(t, key)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Authenticate_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return errors.New("connection lost") }})

	_, err := svc.Authenticate(ctx, "mst_any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticate api key")
	db.AssertExpectations(t)
}

// ---------- Revoke ----------

func TestAPIKeyService_Revoke_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("UPDATE 1"), nil)

	err := svc.Revoke(ctx, "test-key-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Revoke_AlreadyRevoked(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("UPDATE 0"), nil)

	err := svc.Revoke(ctx, "test-key-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or already revoked")
	db.AssertExpectations(t)
}

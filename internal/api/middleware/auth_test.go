package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfleet/maestro/internal/model"
)

type stubAuthenticator struct {
	key *model.APIKey
	err error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, _ string) (*model.APIKey, error) {
	return s.key, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingKey(t *testing.T) {
	// Auth checks the header before any lookup, so nil authenticator is safe.
	handler := Auth(nil)(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/hosts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	assert.NoError(t, err)
	assert.Equal(t, "missing API key", body["error"])
}

func TestAuth_UnknownKey(t *testing.T) {
	handler := Auth(&stubAuthenticator{})(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/hosts", nil)
	req.Header.Set("X-API-Key", "mst_deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	assert.Equal(t, "invalid API key", body["error"])
}

func TestAuth_LookupFailure(t *testing.T) {
	handler := Auth(&stubAuthenticator{err: errors.New("connection refused")})(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/hosts", nil)
	req.Header.Set("X-API-Key", "mst_deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuth_ValidKeyInjectsIdentity(t *testing.T) {
	key := &model.APIKey{ID: "key-1", Name: "ops-bot", Role: model.RoleOperator}
	var seen *model.APIKey
	handler := Auth(&stubAuthenticator{key: key})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Identity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/hosts", nil)
	req.Header.Set("X-API-Key", "mst_deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, key, seen)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		need     string
		wantCode int
	}{
		{"viewer denied operator route", model.RoleViewer, model.RoleOperator, http.StatusForbidden},
		{"operator allowed operator route", model.RoleOperator, model.RoleOperator, http.StatusOK},
		{"operator denied admin route", model.RoleOperator, model.RoleAdmin, http.StatusForbidden},
		{"admin allowed operator route", model.RoleAdmin, model.RoleOperator, http.StatusOK},
		{"admin allowed admin route", model.RoleAdmin, model.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &model.APIKey{ID: "key-1", Name: "test", Role: tt.role}
			handler := Auth(&stubAuthenticator{key: key})(RequireRole(tt.need)(okHandler()))

			req := httptest.NewRequest("POST", "/api/v1/schedules", nil)
			req.Header.Set("X-API-Key", "mst_deadbeef")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	handler := RequireRole(model.RoleViewer)(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/hosts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatedBy(t *testing.T) {
	assert.Equal(t, "unknown", CreatedBy(context.Background()))

	ctx := context.WithValue(context.Background(), identityKey, &model.APIKey{Name: "ops-bot"})
	assert.Equal(t, "key:ops-bot", CreatedBy(ctx))
}

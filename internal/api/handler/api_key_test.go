package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newAPIKeyHandler() *APIKey {
	return NewAPIKey(nil)
}

func TestAPIKeyCreate_InvalidJSON(t *testing.T) {
	h := newAPIKeyHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/api-keys", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestAPIKeyCreate_MissingName(t *testing.T) {
	h := newAPIKeyHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api-keys", map[string]any{
		"role": "viewer",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyCreate_UnknownRole(t *testing.T) {
	h := newAPIKeyHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api-keys", map[string]any{
		"name": "ci-bot",
		"role": "superuser",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestAPIKeyRevoke_EmptyID(t *testing.T) {
	h := newAPIKeyHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodDelete, "/api-keys/", nil)
	r = withChiURLParam(r, "id", "")

	h.Revoke(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

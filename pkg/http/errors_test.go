package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Zero(t, resp.RetryAfter)
}

func TestWriteErrorWithRetry(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithRetry(w, 401, "authentication_failed", "invalid credentials", 14*time.Minute+30*time.Second)

	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "870", w.Header().Get("Retry-After"))

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, 870, resp.RetryAfter)
}

func TestWriteErrorWithRetry_MinimumOneSecond(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithRetry(w, 401, "authentication_failed", "invalid credentials", 100*time.Millisecond)

	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteJSON(w, 201, map[string]string{"status": "created"})

	assert.Equal(t, 201, w.Code)
	assert.JSONEq(t, `{"status":"created"}`, w.Body.String())
}

package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-ticketsync/internal/auth"
)

func protected(token string) http.Handler {
	return auth.RequireServiceToken(token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireServiceToken(t *testing.T) {
	handler := protected("s3cret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireServiceTokenMissingHeader(t *testing.T) {
	handler := protected("s3cret")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireServiceTokenWrongToken(t *testing.T) {
	handler := protected("s3cret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireServiceTokenDisabledWhenEmpty(t *testing.T) {
	handler := protected("")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

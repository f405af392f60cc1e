package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoBody(t *testing.T, got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		*got = string(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesSmallPayload(t *testing.T) {
	var got string
	handler := BodyLimit{Max: 32}.Middleware(echoBody(t, &got))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/v1/checkout/form", strings.NewReader(`{"cvv":"123"}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"cvv":"123"}`, got)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	var got string
	handler := BodyLimit{Max: 4}.Middleware(echoBody(t, &got))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
	assert.Empty(t, got)
}

func TestBodyLimitRejectsUnknownLength(t *testing.T) {
	var got string
	handler := BodyLimit{Max: 4}.Middleware(echoBody(t, &got))

	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("streamed body")))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, got)
}

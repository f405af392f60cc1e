package resilience_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/resilience"
)

func TestHTTPClientRetriesIdempotentRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestHTTPClientDoesNotRetryPost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestHTTPClientOpenBreakerShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "shortcircuit", MinRequests: 1, OpenFor: time.Minute})
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker, MaxAttempts: 1}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = cl.Do(context.Background(), req)
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit))
}

func TestIdempotentMethods(t *testing.T) {
	require.True(t, resilience.Idempotent(http.MethodGet))
	require.True(t, resilience.Idempotent(http.MethodPut))
	require.True(t, resilience.Idempotent(http.MethodDelete))
	require.False(t, resilience.Idempotent(http.MethodPost))
	require.False(t, resilience.Idempotent(http.MethodPatch))
}

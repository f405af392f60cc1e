package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemRejectsReplayPerDevice(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	calls := 0
	h := Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(device string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", nil)
		req.Header.Set("Idempotency-Key", "abc")
		req = req.WithContext(WithDeviceID(context.Background(), device))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, do("dev-1"))
	require.Equal(t, http.StatusConflict, do("dev-1"))
	require.Equal(t, http.StatusOK, do("dev-2"))
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
	}
}

func TestScopeIdentifiers(t *testing.T) {
	ctx := context.Background()
	_, ok := DeviceID(ctx)
	require.False(t, ok)

	ctx = WithDeviceID(ctx, "d1")
	ctx = WithSessionID(ctx, "s1")
	ctx = WithIdentity(ctx, Identity{UserID: "u1", Email: "a@b.co", Role: RoleAdmin})

	dev, _ := DeviceID(ctx)
	sess, _ := SessionID(ctx)
	id, ok := IdentityFrom(ctx)
	require.Equal(t, "d1", dev)
	require.Equal(t, "s1", sess)
	require.True(t, ok)
	require.True(t, id.IsAdmin())
}

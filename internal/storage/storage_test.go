package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, time.Hour), mr
}

func scoped() context.Context {
	ctx := common.WithDeviceID(context.Background(), "dev")
	return common.WithSessionID(ctx, "sess")
}

func TestLocalScopeHasNoExpiry(t *testing.T) {
	s, mr := newStore(t)
	ctx := scoped()

	require.NoError(t, s.Set(ctx, Local, "cart_air593", []int{1, 2}))
	require.True(t, mr.Exists("air593:local:dev:cart_air593"))
	require.Zero(t, mr.TTL("air593:local:dev:cart_air593"))

	var out []int
	ok, err := s.Get(ctx, Local, "cart_air593", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{1, 2}, out)
}

func TestSessionScopeExpiresWhenIdle(t *testing.T) {
	s, mr := newStore(t)
	ctx := scoped()

	require.NoError(t, s.Set(ctx, Session, "user", map[string]string{"email": "a@b.co"}))
	require.Equal(t, time.Hour, mr.TTL("air593:session:sess:user"))

	mr.FastForward(2 * time.Hour)
	var out map[string]string
	ok, err := s.Get(ctx, Session, "user", &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMalformedValue(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, mr.Set("air593:local:dev:cart_air593", "{not json"))

	var out []int
	ok, err := s.Get(scoped(), Local, "cart_air593", &out)
	require.True(t, ok)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestMissingScope(t *testing.T) {
	s, _ := newStore(t)
	err := s.Set(context.Background(), Local, "k", 1)
	require.ErrorIs(t, err, ErrNoScope)
}

func TestRemove(t *testing.T) {
	s, mr := newStore(t)
	ctx := scoped()
	require.NoError(t, s.Set(ctx, Local, "k", 1))
	require.NoError(t, s.Remove(ctx, Local, "k"))
	require.NoError(t, s.Remove(ctx, Local, "k"))
	require.False(t, mr.Exists("air593:local:dev:k"))
}

func TestScopesMiddlewareIssuesAndReusesCookies(t *testing.T) {
	var device, session string
	h := Scopes{SameSite: http.SameSiteLaxMode}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device, _ = common.DeviceID(r.Context())
		session, _ = common.SessionID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	require.NotEmpty(t, device)
	require.NotEmpty(t, session)

	first := device
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Empty(t, rr.Result().Cookies())
	require.Equal(t, first, device)
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
	"github.com/noah-isme/air593-booking/internal/session"
	"github.com/noah-isme/air593-booking/internal/storage"
	"github.com/noah-isme/air593-booking/internal/user"
)

type fixture struct {
	svc    *Service
	users  *user.Service
	remote *remote.Memory
	mr     *miniredis.Miniredis
	ctx    context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mem := remote.NewMemory()
	users := user.NewService(mem, "users")
	tokens, err := NewTokens("test-secret", time.Second)
	require.NoError(t, err)

	svc := &Service{
		Users:       users,
		Sessions:    session.Store{Storage: storage.New(rdb, time.Hour)},
		Tokens:      tokens,
		AccessTTL:   time.Hour,
		RememberTTL: 24 * time.Hour,
		Now:         func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	ctx := common.WithSessionID(common.WithDeviceID(context.Background(), "dev"), "sess")
	return fixture{svc: svc, users: users, remote: mem, mr: mr, ctx: ctx}
}

func (f fixture) addUser(t *testing.T, email, role string, verified bool) user.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), user.Input{Name: "Test", Email: email, Password: "secret1", Role: role, Verified: &verified})
	require.NoError(t, err)
	return u
}

func TestValidateLoginMessages(t *testing.T) {
	require.Equal(t, MsgEmailRequired, ValidateLogin("  ", "secret1"))
	require.Equal(t, MsgEmailInvalid, ValidateLogin("ana@air593", "secret1"))
	require.Equal(t, MsgPasswordLength, ValidateLogin("ana@air593.travel", "12345"))
	require.Equal(t, "", ValidateLogin("ana@air593.travel", "123456"))
}

func TestSignInRedirectsByRoleAndPersistsPerRememberMe(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@air593.travel", common.RoleAdmin, true)
	f.addUser(t, "ana@air593.travel", common.RoleClient, true)

	res, err := f.svc.SignIn(f.ctx, LoginInput{Email: "admin@air593.travel", Password: "secret1", RememberMe: true})
	require.NoError(t, err)
	require.Equal(t, AdminLanding, res.Redirect)
	require.True(t, f.mr.Exists("air593:local:dev:user"))
	require.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), res.Session.LastLogin)

	require.NoError(t, f.svc.Logout(f.ctx))
	require.False(t, f.mr.Exists("air593:local:dev:user"))

	res, err = f.svc.SignIn(f.ctx, LoginInput{Email: " ana@air593.travel ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, CustomerLanding, res.Redirect)
	require.False(t, f.mr.Exists("air593:local:dev:user"))
	require.True(t, f.mr.Exists("air593:session:sess:user"))
	require.NotEmpty(t, res.Token)
}

func TestSignInFailures(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana@air593.travel", common.RoleClient, true)
	f.addUser(t, "new@air593.travel", common.RoleClient, false)

	cases := []struct {
		in     LoginInput
		status int
	}{
		{LoginInput{Email: "bad", Password: "secret1"}, http.StatusBadRequest},
		{LoginInput{Email: "ana@air593.travel", Password: "wrong-pass"}, http.StatusUnauthorized},
		{LoginInput{Email: "ghost@air593.travel", Password: "secret1"}, http.StatusUnauthorized},
		{LoginInput{Email: "new@air593.travel", Password: "secret1"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		_, err := f.svc.SignIn(f.ctx, tc.in)
		var appErr *common.AppError
		require.True(t, errors.As(err, &appErr), tc.in.Email)
		require.Equal(t, tc.status, appErr.HTTPStatus, tc.in.Email)
	}
	require.False(t, f.mr.Exists("air593:session:sess:user"))
}

func TestGatewayLogin(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana@air593.travel", common.RoleClient, true)

	ok, err := f.svc.Login(f.ctx, "ana@air593.travel", "secret1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.Login(f.ctx, "ana@air593.travel", "nope-nope")
	require.NoError(t, err)
	require.False(t, ok)

	f.remote.Fail = func(string, string) error { return &remote.StatusError{Op: "list", Status: 0} }
	ok, err = f.svc.Login(f.ctx, "ana@air593.travel", "secret1")
	require.False(t, ok)
	require.Equal(t, common.MsgNoConnection, common.FailureMessage(err))
}

func TestGatewayIdentityQueries(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.svc.IsAuthenticated(f.ctx))
	require.False(t, f.svc.IsAdmin(f.ctx))

	ctx := common.WithIdentity(f.ctx, common.Identity{UserID: "-M1", Role: common.RoleAdmin})
	require.True(t, f.svc.IsAuthenticated(ctx))
	require.True(t, f.svc.IsAdmin(ctx))
	id, ok := f.svc.CurrentUser(ctx)
	require.True(t, ok)
	require.Equal(t, "-M1", id.UserID)
}

func TestRegisterCreatesUnverifiedClient(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(f.ctx, "Ana", "ana@air593.travel", "secret1")
	require.NoError(t, err)
	require.Equal(t, common.RoleClient, u.Role)
	require.False(t, u.Verified)

	_, err = f.svc.SignIn(f.ctx, LoginInput{Email: "ana@air593.travel", Password: "secret1"})
	require.Equal(t, common.MsgNotVerified, common.FailureMessage(err))
}

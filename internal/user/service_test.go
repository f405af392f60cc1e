package user

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
)

func TestCreateHashesPasswordAndDefaultsRole(t *testing.T) {
	store := remote.NewMemory()
	svc := NewService(store, "users")
	svc.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	u, err := svc.Create(context.Background(), Input{Name: "Ana", Email: " Ana@Air593.Travel ", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "ana@air593.travel", u.Email)
	require.Equal(t, common.RoleClient, u.Role)
	require.False(t, u.Verified)

	creds, ok, err := svc.FindByEmail(context.Background(), "ANA@air593.travel")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, "secret1", creds.PasswordHash)
	match, err := argon2id.ComparePasswordAndHash("secret1", creds.PasswordHash)
	require.NoError(t, err)
	require.True(t, match)
}

func TestCreateRejectsDuplicateAndInvalid(t *testing.T) {
	svc := NewService(remote.NewMemory(), "users")
	ctx := context.Background()
	_, err := svc.Create(ctx, Input{Name: "Ana", Email: "ana@air593.travel", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Input{Name: "Ana2", Email: "ANA@air593.travel", Password: "secret1"})
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	_, err = svc.Create(ctx, Input{Name: "Bo", Email: "not-an-email", Password: "123"})
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"email": "email", "password": "min"}, appErr.Details)
}

func TestUpdateRehashesOnlyWhenPasswordGiven(t *testing.T) {
	svc := NewService(remote.NewMemory(), "users")
	ctx := context.Background()
	u, err := svc.Create(ctx, Input{Name: "Ana", Email: "ana@air593.travel", Password: "secret1"})
	require.NoError(t, err)
	before, _, _ := svc.FindByEmail(ctx, u.Email)

	verified := true
	u, err = svc.Update(ctx, u.ID, Input{Role: common.RoleAdmin, Verified: &verified})
	require.NoError(t, err)
	require.Equal(t, common.RoleAdmin, u.Role)
	require.True(t, u.Verified)
	after, _, _ := svc.FindByEmail(ctx, u.Email)
	require.Equal(t, before.PasswordHash, after.PasswordHash)

	_, err = svc.Update(ctx, u.ID, Input{Password: "another1"})
	require.NoError(t, err)
	after, _, _ = svc.FindByEmail(ctx, u.Email)
	require.NotEqual(t, before.PasswordHash, after.PasswordHash)
}

func TestGetMissingAndDelete(t *testing.T) {
	store := remote.NewMemory()
	svc := NewService(store, "users")
	ctx := context.Background()

	_, err := svc.Get(ctx, "-missing")
	require.ErrorIs(t, err, remote.ErrNotFound)

	u, err := svc.Create(ctx, Input{Name: "Ana", Email: "ana@air593.travel", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, u.ID))

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestListOrdersByCreation(t *testing.T) {
	svc := NewService(remote.NewMemory(), "users")
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Ana", "Beto", "Caro"} {
		at := base.Add(time.Duration(2-i) * time.Hour)
		svc.Now = func() time.Time { return at }
		_, err := svc.Create(ctx, Input{Name: name, Email: name + "@air593.travel", Password: "secret1"})
		require.NoError(t, err)
	}
	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "Caro", users[0].Name)
	require.Equal(t, "Ana", users[2].Name)
}

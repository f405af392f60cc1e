// Command seeder creates the default accounts on the remote database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/obs"
	"github.com/noah-isme/air593-booking/internal/remote"
	"github.com/noah-isme/air593-booking/internal/resilience"
	"github.com/noah-isme/air593-booking/internal/user"
)

type account struct {
	Name     string
	Email    string
	Password string
	Role     string
	Verified bool
}

var accounts = []account{
	{"Air593 Admin", "admin@air593.travel", "admin593", common.RoleAdmin, true},
	{"Lucia Fernandez", "lucia@example.com", "viajes593", common.RoleClient, true},
	{"Mateo Rivas", "mateo@example.com", "viajes593", common.RoleClient, true},
	{"Pending Customer", "pending@example.com", "viajes593", common.RoleClient, false},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	base := strings.TrimRight(strings.TrimSpace(os.Getenv("REMOTE_BASE_URL")), "/")
	if base == "" {
		logger.Fatal().Msg("REMOTE_BASE_URL is not set")
	}
	resource := strings.TrimSpace(os.Getenv("REMOTE_USERS_RESOURCE"))
	if resource == "" {
		resource = "users"
	}

	client := remote.New(base, resilience.HTTPClient{
		Client:      remote.HTTPTransportClient(10 * time.Second),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
	})
	users := user.NewService(client, resource)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created := 0
	for _, acc := range accounts {
		verified := acc.Verified
		u, err := users.Create(ctx, user.Input{
			Name:     acc.Name,
			Email:    acc.Email,
			Password: acc.Password,
			Role:     acc.Role,
			Verified: &verified,
		})
		var appErr *common.AppError
		switch {
		case errors.As(err, &appErr) && appErr.StatusCode() == http.StatusConflict:
			logger.Info().Str("email", acc.Email).Msg("already present")
		case err != nil:
			logger.Fatal().Err(err).Str("email", acc.Email).Msg("seed user")
		default:
			created++
			logger.Info().Str("id", u.ID).Str("email", u.Email).Str("role", u.Role).Msg("user created")
		}
	}
	logger.Info().Int("created", created).Msg("seeding completed")
}

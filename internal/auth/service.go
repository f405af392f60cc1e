package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/session"
	"github.com/noah-isme/air593-booking/internal/user"
)

// Landing routes returned after a successful login.
const (
	AdminLanding    = "/admin"
	CustomerLanding = "/gestion"
	LoginRoute      = "/login"
)

// Login form messages.
const (
	MsgEmailRequired  = "email is required"
	MsgEmailInvalid   = "enter a valid email"
	MsgPasswordLength = "minimum 6 characters"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Gateway is the authentication surface the rest of the application relies on.
type Gateway interface {
	IsAuthenticated(ctx context.Context) bool
	IsAdmin(ctx context.Context) bool
	CurrentUser(ctx context.Context) (common.Identity, bool)
	Login(ctx context.Context, email, password string) (bool, error)
	Logout(ctx context.Context) error
}

// Users is the user-store capability needed for authentication.
type Users interface {
	FindByEmail(ctx context.Context, email string) (user.Credentials, bool, error)
	Create(ctx context.Context, in user.Input) (user.User, error)
}

// LoginInput is the login form.
type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResult describes a completed sign-in.
type LoginResult struct {
	User      common.Identity `json:"user"`
	Session   session.Data    `json:"session"`
	Redirect  string          `json:"redirect"`
	Token     string          `json:"-"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Remember  bool            `json:"-"`
}

// Service authenticates users against the remote user records and manages the
// persisted session data.
type Service struct {
	Users       Users
	Sessions    session.Store
	Tokens      *Tokens
	AccessTTL   time.Duration
	RememberTTL time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

var _ Gateway = (*Service)(nil)

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ValidateLogin returns the first form error, or "" when the form may be submitted.
func ValidateLogin(email, password string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return MsgEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return MsgEmailInvalid
	}
	if len(password) < 6 {
		return MsgPasswordLength
	}
	return ""
}

// SignIn checks credentials, issues a token and persists session data in the
// scope selected by RememberMe.
func (s *Service) SignIn(ctx context.Context, in LoginInput) (LoginResult, error) {
	if msg := ValidateLogin(in.Email, in.Password); msg != "" {
		return LoginResult{}, common.NewAppError("VALIDATION_ERROR", msg, http.StatusBadRequest, nil)
	}
	creds, ok, err := s.Users.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	invalid := common.NewAppError("INVALID_CREDENTIALS", common.MsgInvalidCredentials, http.StatusUnauthorized, nil)
	if !ok || creds.PasswordHash == "" {
		return LoginResult{}, invalid
	}
	match, err := argon2id.ComparePasswordAndHash(in.Password, creds.PasswordHash)
	if err != nil || !match {
		return LoginResult{}, invalid
	}
	if !creds.Verified {
		return LoginResult{}, common.NewAppError("ACCOUNT_NOT_VERIFIED", common.MsgNotVerified, http.StatusForbidden, nil)
	}

	identity := common.Identity{UserID: creds.ID, Email: creds.Email, Role: creds.Role}
	ttl := s.AccessTTL
	if in.RememberMe && s.RememberTTL > 0 {
		ttl = s.RememberTTL
	}
	token, expiresAt, err := s.Tokens.Issue(identity, ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	data := session.Data{Email: creds.Email, Role: creds.Role, LastLogin: s.now().UTC()}
	if err := s.Sessions.Save(ctx, data, in.RememberMe); err != nil {
		return LoginResult{}, fmt.Errorf("persist session: %w", err)
	}
	s.Logger.Info().Str("user_id", creds.ID).Bool("remember", in.RememberMe).Msg("login succeeded")

	return LoginResult{
		User:      identity,
		Session:   data,
		Redirect:  LandingFor(identity.Role),
		Token:     token,
		ExpiresAt: expiresAt,
		Remember:  in.RememberMe,
	}, nil
}

// LandingFor returns the route a role is sent to after login.
func LandingFor(role string) string {
	if role == common.RoleAdmin {
		return AdminLanding
	}
	return CustomerLanding
}

// Register creates an unverified customer account.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	if msg := ValidateLogin(email, password); msg != "" {
		return user.User{}, common.NewAppError("VALIDATION_ERROR", msg, http.StatusBadRequest, nil)
	}
	verified := false
	return s.Users.Create(ctx, user.Input{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     common.RoleClient,
		Verified: &verified,
	})
}

// Login reports whether the credentials were accepted. Rejected credentials are
// not an error; other failures are returned with their status.
func (s *Service) Login(ctx context.Context, email, password string) (bool, error) {
	_, err := s.SignIn(ctx, LoginInput{Email: email, Password: password})
	if err == nil {
		return true, nil
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusUnauthorized {
		return false, nil
	}
	return false, err
}

// Logout removes the persisted session data from both scopes.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.Sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether the request carries a valid session token.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := common.IdentityFrom(ctx)
	return ok
}

// IsAdmin reports whether the authenticated user has the admin role.
func (s *Service) IsAdmin(ctx context.Context) bool {
	id, ok := common.IdentityFrom(ctx)
	return ok && id.IsAdmin()
}

// CurrentUser returns the authenticated identity.
func (s *Service) CurrentUser(ctx context.Context) (common.Identity, bool) {
	return common.IdentityFrom(ctx)
}

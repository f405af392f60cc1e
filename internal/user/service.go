package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
)

// Store is the subset of the remote database client used for user records.
type Store interface {
	List(ctx context.Context, resource string, out any) error
	Create(ctx context.Context, resource string, body any) (string, error)
	Get(ctx context.Context, resource, id string, out any) error
	Put(ctx context.Context, resource, id string, body any) error
	Delete(ctx context.Context, resource, id string) error
}

// User is the API view of a user record. The password hash never leaves the service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// record is the document shape stored remotely.
type record struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// Input carries create and update payloads. Empty fields on update keep the stored value.
type Input struct {
	Name     string `json:"name" validate:"omitempty,min=2"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN CLIENT"`
	Verified *bool  `json:"verified"`
}

// Credentials pairs a user with its stored hash for authentication.
type Credentials struct {
	User
	PasswordHash string
}

// Service manages user records on the remote store.
type Service struct {
	Remote   Store
	Resource string
	Now      func() time.Time

	validate *validator.Validate
}

// NewService constructs a user service over the given resource.
func NewService(store Store, resource string) *Service {
	if resource == "" {
		resource = "users"
	}
	return &Service{Remote: store, Resource: resource, Now: time.Now, validate: common.NewValidator()}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) fetchAll(ctx context.Context) (map[string]record, error) {
	var records map[string]record
	if err := s.Remote.List(ctx, s.Resource, &records); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return records, nil
}

// List returns every user ordered by creation time.
func (s *Service) List(ctx context.Context) ([]User, error) {
	records, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(records))
	for id, rec := range records {
		users = append(users, toUser(id, rec))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Create stores a new user and returns it with the generated id.
func (s *Service) Create(ctx context.Context, in Input) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	missing := map[string]string{}
	if in.Name == "" {
		missing["name"] = "required"
	}
	if in.Email == "" {
		missing["email"] = "required"
	}
	if in.Password == "" {
		missing["password"] = "required"
	}
	if len(missing) > 0 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "invalid user payload", http.StatusBadRequest, nil).WithDetails(missing)
	}

	records, err := s.fetchAll(ctx)
	if err != nil {
		return User{}, err
	}
	for _, rec := range records {
		if normalizeEmail(rec.Email) == in.Email {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, nil)
		}
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	rec := record{
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Role:      valueOr(in.Role, common.RoleClient),
		CreatedAt: s.now(),
	}
	if in.Verified != nil {
		rec.Verified = *in.Verified
	}
	id, err := s.Remote.Create(ctx, s.Resource, rec)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return toUser(id, rec), nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return User{}, err
	}
	return toUser(id, rec), nil
}

// Update replaces the stored record, applying non-empty fields from in. A new
// password is hashed before it is stored.
func (s *Service) Update(ctx context.Context, id string, in Input) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	rec, err := s.get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Name != "" {
		rec.Name = in.Name
	}
	if in.Email != "" {
		rec.Email = in.Email
	}
	if in.Role != "" {
		rec.Role = in.Role
	}
	if in.Verified != nil {
		rec.Verified = *in.Verified
	}
	if in.Password != "" {
		hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		rec.Password = hash
	}
	if err := s.Remote.Put(ctx, s.Resource, id, rec); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return toUser(id, rec), nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return common.NewAppError("BAD_REQUEST", "user id is required", http.StatusBadRequest, nil)
	}
	if err := s.Remote.Delete(ctx, s.Resource, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// FindByEmail looks up a user by email for credential checks.
func (s *Service) FindByEmail(ctx context.Context, email string) (Credentials, bool, error) {
	records, err := s.fetchAll(ctx)
	if err != nil {
		return Credentials{}, false, err
	}
	target := normalizeEmail(email)
	for id, rec := range records {
		if normalizeEmail(rec.Email) == target {
			return Credentials{User: toUser(id, rec), PasswordHash: rec.Password}, true, nil
		}
	}
	return Credentials{}, false, nil
}

func (s *Service) get(ctx context.Context, id string) (record, error) {
	if strings.TrimSpace(id) == "" {
		return record{}, common.NewAppError("BAD_REQUEST", "user id is required", http.StatusBadRequest, nil)
	}
	var rec record
	if err := s.Remote.Get(ctx, s.Resource, id, &rec); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return record{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return record{}, fmt.Errorf("get user: %w", err)
	}
	return rec, nil
}

func (s *Service) check(in Input) error {
	if s.validate == nil {
		s.validate = common.NewValidator()
	}
	if err := s.validate.Struct(in); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "invalid user payload", http.StatusBadRequest, err).WithDetails(common.FieldErrors(err))
	}
	return nil
}

func toUser(id string, rec record) User {
	return User{
		ID:        id,
		Name:      rec.Name,
		Email:     rec.Email,
		Role:      valueOr(rec.Role, common.RoleClient),
		Verified:  rec.Verified,
		CreatedAt: rec.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

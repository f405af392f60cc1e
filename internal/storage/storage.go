package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/air593-booking/internal/common"
)

// Scope selects which browser-bound keyspace a value lives in.
type Scope int

const (
	// Local survives browser restarts and is bound to the device cookie.
	Local Scope = iota
	// Session is bound to the browser-session cookie and expires when idle.
	Session
)

func (s Scope) String() string {
	if s == Session {
		return "session"
	}
	return "local"
}

var (
	// ErrNoScope is returned when the request carries no identifier for the scope.
	ErrNoScope = errors.New("storage: scope identifier missing from context")
	// ErrMalformed is returned when a stored value cannot be decoded.
	ErrMalformed = errors.New("storage: malformed value")
)

// Store keeps JSON values per device or per browser session in Redis.
type Store struct {
	R          redis.Cmdable
	SessionTTL time.Duration
	Prefix     string
}

// New returns a store with the default key prefix.
func New(r redis.Cmdable, sessionTTL time.Duration) *Store {
	return &Store{R: r, SessionTTL: sessionTTL, Prefix: "air593"}
}

func (s *Store) key(ctx context.Context, scope Scope, name string) (string, error) {
	var (
		id string
		ok bool
	)
	if scope == Session {
		id, ok = common.SessionID(ctx)
	} else {
		id, ok = common.DeviceID(ctx)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoScope, scope)
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = "air593"
	}
	return fmt.Sprintf("%s:%s:%s:%s", prefix, scope, id, name), nil
}

// Raw returns the stored bytes. The boolean is false when the key is absent.
func (s *Store) Raw(ctx context.Context, scope Scope, name string) ([]byte, bool, error) {
	key, err := s.key(ctx, scope, name)
	if err != nil {
		return nil, false, err
	}
	val, err := s.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage get %s: %w", name, err)
	}
	s.touch(ctx, scope, key)
	return val, true, nil
}

// Get decodes the stored value into out. A value that does not decode yields
// ErrMalformed so callers may recover.
func (s *Store) Get(ctx context.Context, scope Scope, name string, out any) (bool, error) {
	raw, ok, err := s.Raw(ctx, scope, name)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return true, nil
}

// Set stores v as JSON. Session values get the idle TTL; local values never expire.
func (s *Store) Set(ctx context.Context, scope Scope, name string, v any) error {
	key, err := s.key(ctx, scope, name)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage encode %s: %w", name, err)
	}
	if err := s.R.Set(ctx, key, payload, s.ttl(scope)).Err(); err != nil {
		return fmt.Errorf("storage set %s: %w", name, err)
	}
	return nil
}

// Remove deletes the value. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, scope Scope, name string) error {
	key, err := s.key(ctx, scope, name)
	if err != nil {
		return err
	}
	if err := s.R.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("storage remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) ttl(scope Scope) time.Duration {
	if scope == Session {
		return s.SessionTTL
	}
	return 0
}

func (s *Store) touch(ctx context.Context, scope Scope, key string) {
	if scope != Session || s.SessionTTL <= 0 {
		return
	}
	_ = s.R.Expire(ctx, key, s.SessionTTL).Err()
}

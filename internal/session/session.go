package session

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/air593-booking/internal/storage"
)

// Key is the storage key session data is persisted under.
const Key = "user"

// Data is what the login page remembers about the signed-in user.
type Data struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
}

// Store persists session data in the local scope when the user asked to be
// remembered and in the session scope otherwise.
type Store struct {
	Storage *storage.Store
}

// Save writes data into the scope picked by remember.
func (s Store) Save(ctx context.Context, data Data, remember bool) error {
	scope := storage.Session
	if remember {
		scope = storage.Local
	}
	return s.Storage.Set(ctx, scope, Key, data)
}

// Load returns the persisted data, preferring the durable copy. Unreadable
// entries are treated as absent.
func (s Store) Load(ctx context.Context) (Data, bool, error) {
	for _, scope := range []storage.Scope{storage.Local, storage.Session} {
		var data Data
		ok, err := s.Storage.Get(ctx, scope, Key, &data)
		if errors.Is(err, storage.ErrMalformed) {
			continue
		}
		if err != nil {
			return Data{}, false, err
		}
		if ok {
			return data, true, nil
		}
	}
	return Data{}, false, nil
}

// Clear removes session data from both scopes.
func (s Store) Clear(ctx context.Context) error {
	return errors.Join(
		s.Storage.Remove(ctx, storage.Local, Key),
		s.Storage.Remove(ctx, storage.Session, Key),
	)
}

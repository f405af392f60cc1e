package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/lock"
	"github.com/noah-isme/air593-booking/internal/obs"
	"github.com/noah-isme/air593-booking/internal/storage"
)

const (
	// PersistKey holds the device's saved cart in the local scope.
	PersistKey = "cart_air593"
	viewKey    = "cart_view"
)

// Reservations is the externally held reservation list merged into the cart.
type Reservations interface {
	List(ctx context.Context) ([]LineItem, error)
	Clear(ctx context.Context) error
}

// State is the cart as presented to the client.
type State struct {
	Items []LineItem `json:"items"`
	Count int        `json:"count"`
	Totals
}

func newState(items []LineItem) State {
	if items == nil {
		items = []LineItem{}
	}
	return State{Items: items, Count: len(items), Totals: ComputeTotals(items)}
}

// Store owns the per-browser cart. The working list lives in the session scope,
// mutations are persisted to the device's local scope under PersistKey.
type Store struct {
	Storage      *storage.Store
	Reservations Reservations
	Locker       lock.Locker
	Logger       zerolog.Logger
}

// Load rebuilds the working list: reservations first, then the persisted
// items. Persisted data that does not decode is ignored.
func (s *Store) Load(ctx context.Context) (State, error) {
	var st State
	err := s.withCart(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.load(ctx)
		return err
	})
	return st, err
}

// Current returns the working list, loading it on first access.
func (s *Store) Current(ctx context.Context) (State, error) {
	var st State
	err := s.withCart(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.current(ctx)
		return err
	})
	return st, err
}

// Remove drops the item at index once c approves. An index outside the list
// is ignored without prompting. The boolean reports whether the cart changed.
func (s *Store) Remove(ctx context.Context, index int, c Confirmer) (State, bool, error) {
	var (
		st      State
		changed bool
	)
	err := s.withCart(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.current(ctx)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(st.Items) {
			return nil
		}
		if c == nil || !c.Confirm(ctx, removePrompt(st.Items[index].Destination)) {
			return nil
		}
		items := make([]LineItem, 0, len(st.Items)-1)
		items = append(items, st.Items[:index]...)
		items = append(items, st.Items[index+1:]...)
		if err := s.Storage.Set(ctx, storage.Local, PersistKey, items); err != nil {
			return err
		}
		st, err = s.save(ctx, items)
		if err != nil {
			return err
		}
		changed = true
		obs.Inc(obs.CartMutationsTotal, "remove")
		return nil
	})
	return st, changed, err
}

// Clear empties the cart once c approves. An empty cart is left alone without
// prompting.
func (s *Store) Clear(ctx context.Context, c Confirmer) (State, bool, error) {
	var (
		st      State
		changed bool
	)
	err := s.withCart(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.current(ctx)
		if err != nil {
			return err
		}
		if len(st.Items) == 0 {
			return nil
		}
		if c == nil || !c.Confirm(ctx, clearPrompt) {
			return nil
		}
		if err := s.Storage.Remove(ctx, storage.Local, PersistKey); err != nil {
			return err
		}
		st, err = s.save(ctx, nil)
		if err != nil {
			return err
		}
		changed = true
		obs.Inc(obs.CartMutationsTotal, "clear")
		return nil
	})
	return st, changed, err
}

// Empty discards everything the cart was built from after a paid order:
// the working list, the persisted items and the reservation list.
func (s *Store) Empty(ctx context.Context) error {
	return s.withCart(ctx, func(ctx context.Context) error {
		if err := s.Storage.Remove(ctx, storage.Local, PersistKey); err != nil {
			return err
		}
		if s.Reservations != nil {
			if err := s.Reservations.Clear(ctx); err != nil {
				return fmt.Errorf("clear reservations: %w", err)
			}
		}
		if _, err := s.save(ctx, nil); err != nil {
			return err
		}
		obs.Inc(obs.CartMutationsTotal, "checkout")
		return nil
	})
}

func (s *Store) withCart(ctx context.Context, fn func(context.Context) error) error {
	device, ok := common.DeviceID(ctx)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNoScope, storage.Local)
	}
	return s.Locker.WithLock(ctx, lock.Key("cart", device), fn)
}

func (s *Store) load(ctx context.Context) (State, error) {
	var items []LineItem
	if s.Reservations != nil {
		reserved, err := s.Reservations.List(ctx)
		if err != nil {
			return State{}, fmt.Errorf("list reservations: %w", err)
		}
		items = append(items, reserved...)
	}

	var saved []LineItem
	_, err := s.Storage.Get(ctx, storage.Local, PersistKey, &saved)
	switch {
	case errors.Is(err, storage.ErrMalformed):
		s.Logger.Debug().Err(err).Msg("ignoring unreadable saved cart")
		saved = nil
	case err != nil:
		return State{}, err
	}
	items = append(items, saved...)
	obs.Inc(obs.CartMutationsTotal, "load")
	return s.save(ctx, items)
}

func (s *Store) current(ctx context.Context) (State, error) {
	var items []LineItem
	ok, err := s.Storage.Get(ctx, storage.Session, viewKey, &items)
	if errors.Is(err, storage.ErrMalformed) || (err == nil && !ok) {
		return s.load(ctx)
	}
	if err != nil {
		return State{}, err
	}
	return newState(items), nil
}

func (s *Store) save(ctx context.Context, items []LineItem) (State, error) {
	st := newState(items)
	if err := s.Storage.Set(ctx, storage.Session, viewKey, st.Items); err != nil {
		return State{}, err
	}
	return st, nil
}

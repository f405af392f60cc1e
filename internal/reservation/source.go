package reservation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/air593-booking/internal/cart"
	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/lock"
	"github.com/noah-isme/air593-booking/internal/storage"
)

// Key stores the reservations in the session scope. They last as long as the
// browser session; the cart persists whatever the customer kept of them.
const Key = "reservations"

// Source keeps the reservations made from the booking pages of a browser session.
type Source struct {
	Storage *storage.Store
	Locker  lock.Locker
}

// List returns the session's reservations in booking order.
func (s *Source) List(ctx context.Context) ([]cart.LineItem, error) {
	var items []cart.LineItem
	if _, err := s.Storage.Get(ctx, storage.Session, Key, &items); err != nil {
		if errors.Is(err, storage.ErrMalformed) {
			return []cart.LineItem{}, nil
		}
		return nil, err
	}
	if items == nil {
		items = []cart.LineItem{}
	}
	return items, nil
}

// Add appends a reservation. A missing id is generated.
func (s *Source) Add(ctx context.Context, item cart.LineItem) (cart.LineItem, error) {
	item.Destination = strings.TrimSpace(item.Destination)
	details := map[string]string{}
	if item.Destination == "" {
		details["destination"] = "required"
	}
	if item.Price.IsNegative() {
		details["price"] = "must not be negative"
	}
	if len(details) > 0 {
		return cart.LineItem{}, common.NewAppError("VALIDATION_ERROR", "invalid reservation", http.StatusBadRequest, nil).WithDetails(details)
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}

	err := s.withSession(ctx, func(ctx context.Context) error {
		items, err := s.List(ctx)
		if err != nil {
			return err
		}
		return s.Storage.Set(ctx, storage.Session, Key, append(items, item))
	})
	if err != nil {
		return cart.LineItem{}, err
	}
	return item, nil
}

// Clear forgets every reservation of the session.
func (s *Source) Clear(ctx context.Context) error {
	return s.withSession(ctx, func(ctx context.Context) error {
		return s.Storage.Remove(ctx, storage.Session, Key)
	})
}

func (s *Source) withSession(ctx context.Context, fn func(context.Context) error) error {
	session, ok := common.SessionID(ctx)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNoScope, storage.Session)
	}
	return s.Locker.WithLock(ctx, lock.Key("reservations", session), fn)
}

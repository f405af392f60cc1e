package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
)

const (
	// PaymentCreditCard is the only payment method the booking form offers.
	PaymentCreditCard = "credit_card"
	// StatusCompleted marks an order paid at submission time.
	StatusCompleted = "completed"
)

// Item is a trip purchased in an order.
type Item struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Price       decimal.Decimal `json:"price"`
}

// Order is the record sent to the remote store when a booking is paid.
type Order struct {
	ID            string          `json:"id,omitempty"`
	HolderName    string          `json:"holderName"`
	Email         string          `json:"email"`
	Total         decimal.Decimal `json:"total"`
	Discount      decimal.Decimal `json:"discount"`
	Timestamp     time.Time       `json:"timestamp"`
	Items         []Item          `json:"items"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
}

// Build assembles a completed credit card order. The holder name is stored
// upper-cased.
func Build(holder, email string, items []Item, total, discount decimal.Decimal, at time.Time) Order {
	if items == nil {
		items = []Item{}
	}
	return Order{
		HolderName:    strings.ToUpper(holder),
		Email:         email,
		Total:         total,
		Discount:      discount,
		Timestamp:     at.UTC(),
		Items:         items,
		PaymentMethod: PaymentCreditCard,
		Status:        StatusCompleted,
	}
}

// Remote is the subset of the remote database client used for orders.
type Remote interface {
	List(ctx context.Context, resource string, out any) error
	Create(ctx context.Context, resource string, body any) (string, error)
	Get(ctx context.Context, resource, id string, out any) error
}

// Store reads and writes order records.
type Store struct {
	Remote   Remote
	Resource string
}

// NewStore returns a store over resource, "orders" when empty.
func NewStore(r Remote, resource string) *Store {
	if resource == "" {
		resource = "orders"
	}
	return &Store{Remote: r, Resource: resource}
}

// Create saves o and returns the id assigned by the remote store. Remote
// failures are returned as is so callers can translate their status.
func (s *Store) Create(ctx context.Context, o Order) (string, error) {
	o.ID = ""
	id, err := s.Remote.Create(ctx, s.Resource, o)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	var records map[string]Order
	if err := s.Remote.List(ctx, s.Resource, &records); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(records))
	for id, o := range records {
		o.ID = id
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Get returns a single order.
func (s *Store) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := s.Remote.Get(ctx, s.Resource, id, &o); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	o.ID = id
	return o, nil
}

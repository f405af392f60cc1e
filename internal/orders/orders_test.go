package orders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
)

func sample(at time.Time) Order {
	return Build("ana torres", "ana@air593.travel",
		[]Item{{ID: "t1", Destination: "Cusco", Price: decimal.NewFromInt(600)}},
		decimal.NewFromInt(600), decimal.Zero, at)
}

func TestBuildFillsFixedFields(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.FixedZone("PET", -5*3600))
	o := sample(at)
	require.Equal(t, "ANA TORRES", o.HolderName)
	require.Equal(t, PaymentCreditCard, o.PaymentMethod)
	require.Equal(t, StatusCompleted, o.Status)
	require.Equal(t, time.UTC, o.Timestamp.Location())
	require.True(t, o.Timestamp.Equal(at))
}

func TestCreateListGet(t *testing.T) {
	store := NewStore(remote.NewMemory(), "")
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	first, err := store.Create(ctx, sample(base))
	require.NoError(t, err)
	second, err := store.Create(ctx, sample(base.Add(time.Hour)))
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second, list[0].ID)
	require.Equal(t, first, list[1].ID)

	got, err := store.Get(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "ANA TORRES", got.HolderName)
	require.True(t, got.Total.Equal(decimal.NewFromInt(600)))
	require.Len(t, got.Items, 1)
}

func TestGetMissingIsNotFound(t *testing.T) {
	store := NewStore(remote.NewMemory(), "orders")
	_, err := store.Get(context.Background(), "nope")
	status, ok := common.Status(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, status)
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCreateKeepsRemoteStatus(t *testing.T) {
	mem := remote.NewMemory()
	mem.Fail = func(op, resource string) error {
		return &remote.StatusError{Op: op, Status: http.StatusInternalServerError, Err: errors.New("down")}
	}
	_, err := NewStore(mem, "orders").Create(context.Background(), sample(time.Now()))
	status, ok := common.Status(err)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, status)
}

func TestAdminHandler(t *testing.T) {
	store := NewStore(remote.NewMemory(), "orders")
	id, err := store.Create(context.Background(), sample(time.Now()))
	require.NoError(t, err)

	r := chi.NewRouter()
	h := &AdminHandler{Store: store}
	r.Get("/orders", h.List)
	r.Get("/orders/{orderID}", h.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"holderName":"ANA TORRES"`)
	require.Contains(t, rec.Body.String(), `"total_items":1`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

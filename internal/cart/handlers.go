package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/storage"
)

// ErrCheckoutInFlight rejects cart changes while the cart is being paid for.
var ErrCheckoutInFlight = common.NewAppError("CHECKOUT_IN_PROGRESS", "the cart cannot change while a payment is being processed", http.StatusConflict, nil)

// Handler wires the cart store to HTTP.
type Handler struct {
	Store *Store
	// Busy reports whether the cart of ctx is being paid for.
	Busy func(ctx context.Context) bool
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// Reload handles POST /api/v1/cart/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// RemoveItem handles DELETE /api/v1/cart/items/{index}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "index must be an integer", nil)
		return
	}
	if h.busy(r) {
		common.WriteError(w, ErrCheckoutInFlight)
		return
	}
	answer := confirmation(r)
	st, _, err := h.Store.Remove(r.Context(), index, answer)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, st, answer)
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.busy(r) {
		common.WriteError(w, ErrCheckoutInFlight)
		return
	}
	answer := confirmation(r)
	st, _, err := h.Store.Clear(r.Context(), answer)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, st, answer)
}

func (h *Handler) busy(r *http.Request) bool {
	return h.Busy != nil && h.Busy(r.Context())
}

func confirmation(r *http.Request) *Answer {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return &Answer{Approved: ok}
}

func respond(w http.ResponseWriter, st State, answer *Answer) {
	if answer.Asked() {
		common.JSONError(w, http.StatusConflict, "CONFIRMATION_REQUIRED", answer.Prompt, map[string]any{
			"prompt": answer.Prompt,
			"cart":   st,
		})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNoScope) {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SCOPE", "device cookie required", nil)
		return
	}
	common.WriteError(w, err)
}

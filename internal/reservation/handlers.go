package reservation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/air593-booking/internal/cart"
	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/storage"
)

// Handler exposes the session's reservation list.
type Handler struct {
	Source *Source
}

// List handles GET /api/v1/reservations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Source.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Add handles POST /api/v1/reservations.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var item cart.LineItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	created, err := h.Source.Add(r.Context(), item)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNoScope) {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SCOPE", "session cookie required", nil)
		return
	}
	common.WriteError(w, err)
}

package user

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/air593-booking/internal/common"
)

// Handler exposes the admin user management endpoints.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/admin/users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, limit := common.ParsePagination(r, 50)
	p := common.Pagination{Page: page, PerPage: limit, TotalItems: len(users)}
	start, end := p.Window()
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       users[start:end],
		"pagination": p,
	})
}

// Create handles POST /api/v1/admin/users.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	u, err := h.Service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": u})
}

// Get handles GET /api/v1/admin/users/{userID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Get(r.Context(), userID(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}

// Update handles PUT /api/v1/admin/users/{userID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	u, err := h.Service.Update(r.Context(), userID(r), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}

// Delete handles DELETE /api/v1/admin/users/{userID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), userID(r)); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "userID"))
}

package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/air593-booking/internal/common"
)

// AdminHandler exposes read access to orders for the admin panel.
type AdminHandler struct {
	Store *Store
}

// List handles GET /api/v1/admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, limit := common.ParsePagination(r, 50)
	p := common.Pagination{Page: page, PerPage: limit, TotalItems: len(list)}
	start, end := p.Window()
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       list[start:end],
		"pagination": p,
	})
}

// Get handles GET /api/v1/admin/orders/{orderID}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

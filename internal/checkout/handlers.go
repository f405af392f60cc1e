package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/storage"
)

// Handler exposes the payment flow of the calling device.
type Handler struct {
	Flows *Registry
}

// Get handles GET /api/v1/checkout.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*Flow).Snapshot)
}

// Open handles POST /api/v1/checkout/open.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*Flow).Open)
}

// Close handles POST /api/v1/checkout/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*Flow).Close)
}

// UpdateForm handles PATCH /api/v1/checkout/form.
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var patch FormPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	flow, err := h.Flows.For(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	snap, err := flow.UpdateForm(r.Context(), patch)
	respond(w, snap, err)
}

// Submit handles POST /api/v1/checkout/submit. A failed payment answers 502
// with the user-facing message; the snapshot is included either way.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	flow, err := h.Flows.For(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	snap, err := flow.Submit(r.Context())
	if err == nil && snap.State == StateFailed {
		common.JSONError(w, http.StatusBadGateway, "PAYMENT_FAILED", snap.Error, map[string]any{"checkout": snap})
		return
	}
	respond(w, snap, err)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, op func(*Flow, context.Context) (Snapshot, error)) {
	flow, err := h.Flows.For(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	snap, err := op(flow, r.Context())
	respond(w, snap, err)
}

func respond(w http.ResponseWriter, snap Snapshot, err error) {
	if err != nil {
		writeError(w, err, &snap)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

func writeError(w http.ResponseWriter, err error, snap *Snapshot) {
	if errors.Is(err, storage.ErrNoScope) {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SCOPE", "device cookie required", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		details := map[string]any{}
		if snap != nil {
			details["checkout"] = *snap
		}
		if fields, ok := appErr.Details.(map[string]string); ok {
			details["fields"] = fields
		}
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, details)
		return
	}
	if status, ok := common.Status(err); ok {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_ERROR", common.FailureMessage(err), map[string]any{"status": status})
		return
	}
	common.WriteError(w, err)
}

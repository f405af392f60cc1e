package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/remote"
)

func newTestRouter(fx *fixture) http.Handler {
	h := &Handler{Flows: NewRegistry(fx.deps, 0)}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(fx.ctx))
		})
	})
	r.Get("/checkout", h.Get)
	r.Post("/checkout/open", h.Open)
	r.Post("/checkout/close", h.Close)
	r.Patch("/checkout/form", h.UpdateForm)
	r.Post("/checkout/submit", h.Submit)
	return r
}

type response struct {
	Data  Snapshot `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Fields   map[string]string `json:"fields"`
			Checkout Snapshot          `json:"checkout"`
		} `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

const validFormJSON = `{"holderName":"Ana Torres","cardNumber":"4111111111111111","expiry":"0927","cvv":"123","email":"ana@air593.travel"}`

func TestHandlerHappyPath(t *testing.T) {
	fx := newFixture(t, 600, 500)
	router := newTestRouter(fx)

	code, body := do(t, router, http.MethodGet, "/checkout", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StateClosed, body.Data.State)
	require.True(t, body.Data.CanPay)
	require.Equal(t, "990", body.Data.Totals.Total.String())

	code, _ = do(t, router, http.MethodPost, "/checkout/open", "")
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, router, http.MethodPatch, "/checkout/form", validFormJSON)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "4111 1111 1111 1111", body.Data.Form.CardNumber)
	require.Equal(t, "09/27", body.Data.Form.Expiry)

	code, body = do(t, router, http.MethodPost, "/checkout/submit", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StateSucceeded, body.Data.State)
	require.NotEmpty(t, body.Data.OrderID)
}

func TestHandlerSubmitInvalidForm(t *testing.T) {
	fx := newFixture(t, 400)
	router := newTestRouter(fx)
	do(t, router, http.MethodPost, "/checkout/open", "")

	code, body := do(t, router, http.MethodPost, "/checkout/submit", "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, common.MsgInvalidData, body.Error.Message)
	require.Equal(t, "required", body.Error.Details.Fields["cardNumber"])
	require.Len(t, body.Error.Details.Checkout.Errors, 5)
}

func TestHandlerSubmitRemoteFailure(t *testing.T) {
	fx := newFixture(t, 400)
	fx.mem.Fail = func(op, resource string) error {
		return &remote.StatusError{Op: op, Status: http.StatusInternalServerError, Err: errors.New("down")}
	}
	router := newTestRouter(fx)
	do(t, router, http.MethodPost, "/checkout/open", "")
	do(t, router, http.MethodPatch, "/checkout/form", validFormJSON)

	code, body := do(t, router, http.MethodPost, "/checkout/submit", "")
	require.Equal(t, http.StatusBadGateway, code)
	require.Equal(t, "PAYMENT_FAILED", body.Error.Code)
	require.Equal(t, common.MsgServerError, body.Error.Message)
	require.Equal(t, StateFailed, body.Error.Details.Checkout.State)
}

func TestHandlerOpenEmptyCart(t *testing.T) {
	fx := newFixture(t)
	router := newTestRouter(fx)

	code, body := do(t, router, http.MethodPost, "/checkout/open", "")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "NOTHING_TO_PAY", body.Error.Code)
}

func TestRegistryKeepsOneFlowPerDevice(t *testing.T) {
	fx := newFixture(t, 400)
	reg := NewRegistry(fx.deps, 0)

	a, err := reg.For(fx.ctx)
	require.NoError(t, err)
	b, err := reg.For(fx.ctx)
	require.NoError(t, err)
	require.Same(t, a, b)

	other, err := reg.For(common.WithDeviceID(fx.ctx, "other"))
	require.NoError(t, err)
	require.NotSame(t, a, other)
	require.Equal(t, 2, reg.Len())
}

func TestRegistryDropsIdleFlows(t *testing.T) {
	fx := newFixture(t, 400)
	now := fixedNow
	fx.deps.Now = func() time.Time { return now }
	reg := NewRegistry(fx.deps, time.Minute)

	_, err := reg.For(fx.ctx)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = reg.For(common.WithDeviceID(fx.ctx, "other"))
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())
}

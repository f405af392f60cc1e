package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/obs"
)

// Handler exposes the session lifecycle endpoints.
type Handler struct {
	Service        *Service
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	result, err := h.Service.SignIn(r.Context(), req)
	if err != nil {
		obs.Inc(obs.LoginAttemptsTotal, loginOutcome(err))
		h.writeError(w, err)
		return
	}
	obs.Inc(obs.LoginAttemptsTotal, "success")
	h.setCookie(w, result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.clearCookie(w)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"redirect": LoginRoute}})
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	u, err := h.Service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": u})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Service.CurrentUser(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", map[string]any{"redirect": LoginRoute})
		return
	}
	data, found, err := h.Service.Sessions.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	body := map[string]any{"user": id}
	if found {
		body["session"] = data
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": body})
}

// writeError keeps API errors as they are and reports upstream failures with the
// message the login form displays.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.IsAppError(err) {
		common.WriteError(w, err)
		return
	}
	if _, ok := common.Status(err); ok {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_ERROR", common.FailureMessage(err), nil)
		return
	}
	h.Service.Logger.Error().Err(err).Msg("auth request failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", common.MsgGeneric, nil)
}

func loginOutcome(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.HTTPStatus {
		case http.StatusBadRequest:
			return "invalid_form"
		case http.StatusUnauthorized:
			return "invalid_credentials"
		case http.StatusForbidden:
			return "not_verified"
		}
	}
	return "error"
}

func (h *Handler) setCookie(w http.ResponseWriter, result LoginResult) {
	cookie := &http.Cookie{
		Name:     h.CookieName,
		Value:    result.Token,
		Domain:   h.CookieDomain,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	}
	if result.Remember {
		cookie.Expires = result.ExpiresAt
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Domain:   h.CookieDomain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}

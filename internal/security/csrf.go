package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/air593-booking/internal/common"
)

// CSRF protects the cookie-authenticated API using the double-submit
// technique: a script-readable cookie is issued on every response lacking it
// and state-changing requests must echo its value in Header.
type CSRF struct {
	Header   string
	Cookie   string
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// Middleware issues the token cookie and enforces the header on unsafe methods.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}
	cookieName := strings.TrimSpace(c.Cookie)
	if cookieName == "" {
		cookieName = "air593_csrf"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieValue := ""
		if cookie, err := r.Cookie(cookieName); err == nil {
			cookieValue = strings.TrimSpace(cookie.Value)
		}
		if cookieValue == "" {
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    uuid.NewString(),
				Path:     "/",
				Domain:   c.Domain,
				Secure:   c.Secure,
				SameSite: c.SameSite,
			})
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISSING", "missing csrf token", nil)
			return
		}
		if cookieValue == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISSING", "missing csrf cookie", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookieValue)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package auth

import (
	"net/http"
	"strings"

	"github.com/noah-isme/air593-booking/internal/common"
)

// Middleware resolves the session token carried by a request.
type Middleware struct {
	Tokens     *Tokens
	CookieName string
}

// Authenticate attaches the identity to the request context when a valid token
// is present. Requests without one continue anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" || m.Tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.Tokens.Parse(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithIdentity(r.Context(), id)))
	})
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.CookieName != "" {
		if cookie, err := r.Cookie(m.CookieName); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}

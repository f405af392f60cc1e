package storage

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/air593-booking/internal/common"
)

const (
	DeviceCookie  = "air593_device"
	SessionCookie = "air593_session"

	deviceMaxAge = 400 * 24 * time.Hour
)

// Scopes issues the device and browser-session cookies and binds their values
// to the request context.
type Scopes struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// Middleware implements the scope binding.
func (s Scopes) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := s.ensure(w, r, DeviceCookie, deviceMaxAge)
		session := s.ensure(w, r, SessionCookie, 0)
		ctx := common.WithDeviceID(r.Context(), device)
		ctx = common.WithSessionID(ctx, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s Scopes) ensure(w http.ResponseWriter, r *http.Request, name string, maxAge time.Duration) string {
	if c, err := r.Cookie(name); err == nil {
		if _, parseErr := uuid.Parse(c.Value); parseErr == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(w, cookie)
	return id
}

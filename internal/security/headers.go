package security

import (
	"fmt"
	"net/http"
)

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

// Headers sets the response headers of the JSON API. Responses may carry
// session and payment data, so they are never cached or framed.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

func (h Headers) values() map[string]string {
	return map[string]string{
		"X-Content-Type-Options":     "nosniff",
		"X-Frame-Options":            "DENY",
		"Referrer-Policy":            "no-referrer",
		"Permissions-Policy":         "geolocation=(), microphone=(), camera=(), payment=(self)",
		"Cross-Origin-Opener-Policy": "same-origin",
		"Content-Security-Policy":    "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":              "no-store",
	}
}

func (h Headers) hsts() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	v := fmt.Sprintf("max-age=%d", maxAge)
	if h.HSTSIncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

// Middleware sets the headers before the handler writes. HSTS is only sent
// over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	static := h.values()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for k, v := range static {
			out.Set(k, v)
		}
		if h.EnableHSTS && r.TLS != nil {
			out.Set("Strict-Transport-Security", h.hsts())
		}
		next.ServeHTTP(w, r)
	})
}

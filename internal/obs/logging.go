package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/air593-booking/internal/common"
)

// NewLogger builds the process logger. format "console" or "text" selects the
// human readable writer; anything else logs JSON.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// RequestLogger attaches a request-scoped logger to the context and writes one
// access line per request. It must run after the scope and auth middleware so
// the device and user are known.
type RequestLogger struct {
	Logger zerolog.Logger
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		lvl := zerolog.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			lvl = zerolog.ErrorLevel
		case status >= http.StatusBadRequest:
			lvl = zerolog.WarnLevel
		}
		evt := hlog.FromRequest(r).WithLevel(lvl).
			Str("method", r.Method).
			Str("route", Route(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Int64("duration_ms", duration.Milliseconds())
		if ip := common.ClientIP(r); ip != "" {
			evt = evt.Str("client_ip", ip)
		}
		if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
	return hlog.NewHandler(l.Logger)(requestFields(access(next)))
}

// requestFields adds correlation ids to the request logger.
func requestFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			if id := middleware.GetReqID(ctx); id != "" {
				c = c.Str("request_id", id)
			}
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				c = c.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
			}
			if device, ok := common.DeviceID(ctx); ok {
				c = c.Str("device_id", device)
			}
			if id, ok := common.IdentityFrom(ctx); ok && id.UserID != "" {
				c = c.Str("user_id", id.UserID)
			}
			return c
		})
		next.ServeHTTP(w, r)
	})
}

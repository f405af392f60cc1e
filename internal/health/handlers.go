package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness flag; the server clears it when draining.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
	PingRemote(ctx context.Context, timeout time.Duration) error
}

// RemotePinger is satisfied by the remote store client.
type RemotePinger interface {
	Ping(ctx context.Context, resource string) error
}

// Probes checks Redis and the remote database.
type Probes struct {
	Redis          redis.Cmdable
	Remote         RemotePinger
	RemoteResource string
}

// PingRedis implements Checker.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// PingRemote implements Checker.
func (p Probes) PingRemote(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Remote.Ping(ctx, p.RemoteResource)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker       Checker
	RedisTimeout  time.Duration
	RemoteTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ready.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, timeoutOr(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		redisStatus = err.Error()
	}
	remoteStatus := "ok"
	if err := h.Checker.PingRemote(ctx, timeoutOr(h.RemoteTimeout, 500*time.Millisecond)); err != nil {
		remoteStatus = err.Error()
	}
	status := map[string]string{
		"redis":  redisStatus,
		"remote": remoteStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if redisStatus != "ok" || remoteStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

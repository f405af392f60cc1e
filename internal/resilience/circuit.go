package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State = gobreaker.State

const (
	Closed   = gobreaker.StateClosed
	HalfOpen = gobreaker.StateHalfOpen
	Open     = gobreaker.StateOpen
)

// BreakerConfig tunes a Breaker. The failure ratio is evaluated over Window
// once MinRequests calls were seen; an open breaker lets a single probe
// through after OpenFor.
type BreakerConfig struct {
	Target       string
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Window       time.Duration
	Logger       *zerolog.Logger
}

// Breaker guards calls to one remote target.
type Breaker struct {
	target string
	logger zerolog.Logger
	cb     *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewBreaker builds a breaker and publishes its initial state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	b := &Breaker{target: strings.TrimSpace(cfg.Target), logger: zerolog.Nop()}
	if b.target == "" {
		b.target = "default"
	}
	if cfg.Logger != nil {
		b.logger = *cfg.Logger
	}
	minRequests := uint32(cfg.MinRequests)
	b.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        b.target,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.recordTransition(from, to)
		},
	})
	b.recordState(Closed)
	return b
}

// Allow asks for permission to call the target. The returned func must be
// called with the outcome of the call.
func (b *Breaker) Allow(ctx context.Context) (func(success bool), error) {
	done, err := b.cb.Allow()
	if err != nil {
		evt := b.logger.Debug().Str("target", b.target).Str("state", b.cb.State().String())
		if traceID := traceIDFromContext(ctx); traceID != "" {
			evt = evt.Str("trace_id", traceID)
		}
		evt.Msg("breaker rejected call")
		return nil, ErrOpenCircuit
	}
	return done, nil
}

// State returns the current breaker state, moving an expired open breaker to
// half-open.
func (b *Breaker) State() State {
	return b.cb.State()
}

// Target names the guarded dependency.
func (b *Breaker) Target() string { return b.target }

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

func (b *Breaker) recordState(s State) {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.target).Set(stateGaugeValue(s))
}

func (b *Breaker) recordTransition(from, to State) {
	b.recordState(to)
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(b.target, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(b.target).Inc()
	}
	b.logger.Info().
		Str("target", b.target).
		Str("from_state", from.String()).
		Str("to_state", to.String()).
		Msg("breaker_transition")
}

func stateGaugeValue(state State) float64 {
	switch state {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if span.IsValid() {
		return span.TraceID().String()
	}
	return ""
}

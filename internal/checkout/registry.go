package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/storage"
)

const sweepEvery = time.Minute

// Registry keeps one flow per device. Flows idle for longer than IdleTTL are
// dropped unless a submission is in flight.
type Registry struct {
	Deps    *Deps
	IdleTTL time.Duration

	mu        sync.Mutex
	flows     map[string]*Flow
	lastSweep time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(deps *Deps, idleTTL time.Duration) *Registry {
	return &Registry{Deps: deps, IdleTTL: idleTTL, flows: map[string]*Flow{}}
}

// For returns the flow of the device bound to ctx, creating it on first use.
func (r *Registry) For(ctx context.Context) (*Flow, error) {
	device, ok := common.DeviceID(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoScope, storage.Local)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flows == nil {
		r.flows = map[string]*Flow{}
	}
	r.sweep()
	f, ok := r.flows[device]
	if !ok {
		f = NewFlow(r.Deps)
		f.lastSeen = r.Deps.now()
		r.flows[device] = f
	}
	return f, nil
}

// Submitting reports whether the device bound to ctx has an order in flight.
// It never creates a flow.
func (r *Registry) Submitting(ctx context.Context) bool {
	device, ok := common.DeviceID(ctx)
	if !ok {
		return false
	}
	r.mu.Lock()
	f, ok := r.flows[device]
	r.mu.Unlock()
	return ok && f.Submitting()
}

// Len reports the number of live flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

func (r *Registry) sweep() {
	if r.IdleTTL <= 0 {
		return
	}
	now := r.Deps.now()
	if now.Sub(r.lastSweep) < sweepEvery {
		return
	}
	r.lastSweep = now
	for device, f := range r.flows {
		if f.idle(now, r.IdleTTL) {
			delete(r.flows, device)
		}
	}
}

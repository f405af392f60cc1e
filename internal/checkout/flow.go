package checkout

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/cart"
	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/events"
	"github.com/noah-isme/air593-booking/internal/obs"
	"github.com/noah-isme/air593-booking/internal/orders"
)

// State is the position of the payment view in its lifecycle.
type State string

const (
	StateClosed     State = "closed"
	StateOpen       State = "open"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	// ErrSubmitting rejects a request made while an order is being sent.
	ErrSubmitting = common.NewAppError("SUBMISSION_IN_PROGRESS", "a payment is already being processed", http.StatusConflict, nil)
	// ErrNothingToPay rejects opening or paying for an empty cart.
	ErrNothingToPay = common.NewAppError("NOTHING_TO_PAY", "the cart total must be greater than zero", http.StatusConflict, nil)
	// ErrNotOpen rejects form edits and submissions while the view is hidden.
	ErrNotOpen = common.NewAppError("CHECKOUT_CLOSED", "open the payment form first", http.StatusConflict, nil)
)

// Cart is the part of the cart store the flow reads and clears.
type Cart interface {
	Current(ctx context.Context) (cart.State, error)
	Empty(ctx context.Context) error
}

// OrderCreator stores paid orders remotely.
type OrderCreator interface {
	Create(ctx context.Context, o orders.Order) (string, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Deps are shared by every flow of a registry.
type Deps struct {
	Cart            Cart
	Orders          OrderCreator
	Events          Emitter
	NavigationDelay time.Duration
	Now             func() time.Time
	After           func(time.Duration, func())
	Logger          zerolog.Logger

	validateOnce sync.Once
	validate     *validator.Validate
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) after(delay time.Duration, fn func()) {
	if d.After != nil {
		d.After(delay, fn)
		return
	}
	time.AfterFunc(delay, fn)
}

func (d *Deps) validator() *validator.Validate {
	d.validateOnce.Do(func() {
		if d.validate == nil {
			d.validate = NewValidator()
		}
	})
	return d.validate
}

// Navigation is the redirect published some time after a successful payment.
type Navigation struct {
	To    string    `json:"to"`
	At    time.Time `json:"at"`
	Ready bool      `json:"ready"`
}

// Snapshot is the flow as presented to the client.
type Snapshot struct {
	State      State             `json:"state"`
	Visible    bool              `json:"visible"`
	Submitting bool              `json:"submitting"`
	Form       PaymentForm       `json:"form"`
	Errors     map[string]string `json:"errors,omitempty"`
	Error      string            `json:"error,omitempty"`
	Success    bool              `json:"success"`
	OrderID    string            `json:"orderId,omitempty"`
	Navigation *Navigation       `json:"navigation,omitempty"`
	MaskedCard string            `json:"maskedCard"`
	CanPay     bool              `json:"canPay"`
	ItemCount  int               `json:"itemCount"`
	Totals     cart.Totals       `json:"totals"`

	// CartPending is set while a paid cart could not be cleared yet. Items and
	// totals are reported empty until it is.
	CartPending bool `json:"cartPending,omitempty"`
}

// Flow drives the payment view of one device. A single submission may be in
// flight; its remote call runs without holding the mutex.
type Flow struct {
	deps *Deps

	mu         sync.Mutex
	state      State
	submitting bool
	form       PaymentForm
	touched    map[string]bool
	errMsg     string
	success    bool
	orderID    string
	nav        *Navigation
	gen        uint64
	lastSeen   time.Time

	// cartPending marks a paid cart whose clearing failed.
	cartPending bool
}

// NewFlow returns a closed flow.
func NewFlow(deps *Deps) *Flow {
	return &Flow{deps: deps, state: StateClosed, touched: map[string]bool{}}
}

// Open shows the payment view with an empty form when there is something to pay.
func (f *Flow) Open(ctx context.Context) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return f.snapshot(st), ErrSubmitting
	}
	if !st.Total.IsPositive() {
		return f.snapshot(st), ErrNothingToPay
	}
	f.state = StateOpen
	f.form = PaymentForm{}
	f.touched = map[string]bool{}
	f.errMsg = ""
	f.success = false
	f.orderID = ""
	f.nav = nil
	return f.snapshot(st), nil
}

// Close hides the payment view. A submission in flight keeps running but its
// outcome no longer drives the view.
func (f *Flow) Close(ctx context.Context) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateClosed
	f.gen++
	return f.snapshot(st), nil
}

// UpdateForm applies formatted field values and reports errors for the fields
// touched so far.
func (f *Flow) UpdateForm(ctx context.Context, patch FormPatch) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return f.snapshot(st), ErrSubmitting
	}
	if f.state != StateOpen && f.state != StateFailed {
		return f.snapshot(st), ErrNotOpen
	}
	for _, name := range patch.apply(&f.form) {
		f.touched[name] = true
	}
	return f.snapshot(st), nil
}

// Snapshot returns the current view of the flow.
func (f *Flow) Snapshot(ctx context.Context) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(st), nil
}

// Submit validates the form and sends the order. An invalid form marks every
// field touched and returns a validation error without contacting the remote
// store. A remote failure is reported in the snapshot, not as an error.
func (f *Flow) Submit(ctx context.Context) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	f.mu.Lock()
	if f.submitting {
		defer f.mu.Unlock()
		return f.snapshot(st), ErrSubmitting
	}
	if f.state != StateOpen && f.state != StateFailed {
		defer f.mu.Unlock()
		return f.snapshot(st), ErrNotOpen
	}
	if fields := f.invalidFields(); len(fields) > 0 {
		defer f.mu.Unlock()
		for _, name := range formFields {
			f.touched[name] = true
		}
		obs.Inc(obs.CheckoutSubmissionsTotal, "invalid")
		return f.snapshot(st), common.NewAppError("VALIDATION_ERROR", common.MsgInvalidData, http.StatusBadRequest, nil).WithDetails(fields)
	}
	if !st.Total.IsPositive() {
		defer f.mu.Unlock()
		return f.snapshot(st), ErrNothingToPay
	}
	prev := f.state
	f.submitting = true
	f.state = StateSubmitting
	gen := f.gen
	form := f.form
	f.mu.Unlock()

	// Cart mutations are refused from here on; the order is built from this read.
	st, err = f.currentCart(ctx)
	if err != nil || !st.Total.IsPositive() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitting = false
		if gen == f.gen {
			f.state = prev
		}
		if err != nil {
			return Snapshot{}, err
		}
		return f.snapshot(st), ErrNothingToPay
	}
	f.mu.Lock()
	f.errMsg = ""
	f.mu.Unlock()

	// The view may be closed or the client may go away; the order still completes.
	ctx = context.WithoutCancel(ctx)
	order := orders.Build(form.HolderName, form.Email, toOrderItems(st.Items), st.Total, st.Discount, f.deps.now())
	started := time.Now()
	id, sendErr := f.deps.Orders.Create(ctx, order)
	elapsed := obs.DurationMillis(time.Since(started))

	if sendErr != nil {
		obs.Inc(obs.CheckoutSubmissionsTotal, "failure")
		obs.Observe(obs.CheckoutSubmitLatency, elapsed, "failure")
		f.deps.Logger.Warn().Err(sendErr).Msg("order submission failed")
		return f.fail(ctx, gen, sendErr)
	}
	obs.Inc(obs.CheckoutSubmissionsTotal, "success")
	obs.Observe(obs.CheckoutSubmitLatency, elapsed, "success")

	if err := f.deps.Cart.Empty(ctx); err != nil {
		obs.Inc(obs.CartMutationsTotal, "checkout_failed")
		f.deps.Logger.Error().Err(err).Str("order_id", id).Msg("clear cart after payment")
		f.mu.Lock()
		f.cartPending = true
		f.mu.Unlock()
	}
	f.publish(ctx, id, order)
	return f.succeed(ctx, gen, id)
}

// Submitting reports whether an order is being sent.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// currentCart returns the cart the view shows. A paid cart that could not be
// cleared is retried first and reported empty while it still fails.
func (f *Flow) currentCart(ctx context.Context) (cart.State, error) {
	f.mu.Lock()
	pending := f.cartPending
	f.mu.Unlock()
	if pending {
		if err := f.deps.Cart.Empty(ctx); err != nil {
			f.deps.Logger.Warn().Err(err).Msg("paid cart still not cleared")
			return cart.State{Items: []cart.LineItem{}}, nil
		}
		f.mu.Lock()
		f.cartPending = false
		f.mu.Unlock()
	}
	return f.deps.Cart.Current(ctx)
}

func (f *Flow) fail(ctx context.Context, gen uint64, cause error) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if gen == f.gen {
		f.state = StateFailed
		f.errMsg = common.FailureMessage(cause)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return f.snapshot(st), nil
}

func (f *Flow) succeed(ctx context.Context, gen uint64, id string) (Snapshot, error) {
	st, err := f.currentCart(ctx)
	f.mu.Lock()
	f.submitting = false
	f.orderID = id
	var nav *Navigation
	if gen == f.gen {
		f.state = StateSucceeded
		f.success = true
		f.errMsg = ""
		nav = &Navigation{To: successRoute(id), At: f.deps.now().Add(f.deps.NavigationDelay)}
		f.nav = nav
	}
	snap := f.snapshot(st)
	f.mu.Unlock()

	if nav != nil {
		f.deps.after(f.deps.NavigationDelay, func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			nav.Ready = true
		})
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (f *Flow) publish(ctx context.Context, id string, order orders.Order) {
	if f.deps.Events == nil {
		return
	}
	order.ID = id
	payload := struct {
		OrderID string `json:"orderId"`
		orders.Order
	}{OrderID: id, Order: order}
	if _, err := f.deps.Events.Emit(ctx, events.TopicOrderCompleted, id, payload); err != nil {
		f.deps.Logger.Warn().Err(err).Str("order_id", id).Msg("order notifications failed")
	}
}

func (f *Flow) invalidFields() map[string]string {
	return common.FieldErrors(f.deps.validator().Struct(f.form))
}

// snapshot must be called with f.mu held.
func (f *Flow) snapshot(st cart.State) Snapshot {
	f.lastSeen = f.deps.now()
	s := Snapshot{
		State:       f.state,
		Visible:     f.state != StateClosed,
		Submitting:  f.submitting,
		Form:        f.form,
		Error:       f.errMsg,
		Success:     f.success,
		OrderID:     f.orderID,
		MaskedCard:  MaskCard(f.form.CardNumber),
		CanPay:      st.Total.IsPositive() && !f.submitting,
		ItemCount:   st.Count,
		Totals:      st.Totals,
		CartPending: f.cartPending,
	}
	if f.nav != nil {
		nav := *f.nav
		s.Navigation = &nav
	}
	if len(f.touched) > 0 {
		for field, tag := range f.invalidFields() {
			if !f.touched[field] {
				continue
			}
			if s.Errors == nil {
				s.Errors = map[string]string{}
			}
			s.Errors[field] = tag
		}
	}
	return s
}

func (f *Flow) idle(now time.Time, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.submitting && now.Sub(f.lastSeen) > ttl
}

func successRoute(id string) string {
	return "/?payment=success&id=" + url.QueryEscape(id)
}

func toOrderItems(items []cart.LineItem) []orders.Item {
	out := make([]orders.Item, 0, len(items))
	for _, it := range items {
		out = append(out, orders.Item{ID: it.ID, Destination: it.Destination, Price: it.Price})
	}
	return out
}

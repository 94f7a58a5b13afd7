// Package checkout drives a single box purchase from the buyer's side:
// order creation, the hosted checkout step and server verification.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"adgrid/internal/events"
	"adgrid/internal/model"
)

type State string

const (
	StateIdle                State = "idle"
	StateOrderRequested      State = "order_requested"
	StateCheckoutOpen        State = "checkout_open"
	StateVerificationPending State = "verification_pending"
	StatePurchased           State = "purchased"
	StateFailed              State = "failed"
)

var (
	// ErrCancelled is returned by a Checkout when the buyer closes it without paying.
	ErrCancelled        = errors.New("checkout cancelled")
	ErrBusy             = errors.New("a purchase is already in progress")
	ErrAlreadyPurchased = errors.New("box already purchased")
	ErrInvalidBox       = errors.New("invalid box index")
)

type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// Confirmation is what the hosted checkout hands back after a payment.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentFailedError carries the processor's reason for a declined payment.
type PaymentFailedError struct {
	Code        string
	Description string
}

func (e *PaymentFailedError) Error() string {
	if e.Code == "" {
		return "payment failed: " + e.Description
	}
	return fmt.Sprintf("payment failed (%s): %s", e.Code, e.Description)
}

// API is the marketplace server as seen by the buyer.
type API interface {
	CreateOrder(ctx context.Context, amount int64, currency string, boxIndex int) (*Order, error)
	Verify(ctx context.Context, confirmation *Confirmation, boxIndex int) error
	PurchasedBoxes(ctx context.Context) ([]int, error)
}

// Checkout opens the processor's hosted payment UI for an order.
type Checkout interface {
	Open(ctx context.Context, order *Order) (*Confirmation, error)
}

type Options struct {
	UserID    string
	UnitPrice int64 // major units
	Currency  string
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

type Flow struct {
	api      API
	checkout Checkout
	opts     Options

	mu        sync.Mutex
	state     State
	box       int
	purchased map[int]bool
}

func NewFlow(api API, checkout Checkout, opts Options) *Flow {
	return &Flow{
		api:       api,
		checkout:  checkout,
		opts:      opts,
		state:     StateIdle,
		box:       -1,
		purchased: make(map[int]bool),
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Box returns the box of the attempt in progress, or -1.
func (f *Flow) Box() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.box
}

// Purchased is the local, possibly stale, set of boxes owned by the user.
func (f *Flow) Purchased() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	boxes := make([]int, 0, len(f.purchased))
	for box := range f.purchased {
		boxes = append(boxes, box)
	}
	sort.Ints(boxes)
	return boxes
}

// Refresh replaces the local purchased set with the server's view.
func (f *Flow) Refresh(ctx context.Context) error {
	boxes, err := f.api.PurchasedBoxes(ctx)
	if err != nil {
		return fmt.Errorf("refresh purchases: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchased = make(map[int]bool, len(boxes))
	for _, box := range boxes {
		f.purchased[box] = true
	}
	return nil
}

// Apply folds a pushed change event into the local purchased set.
func (f *Flow) Apply(event events.Event) {
	if event.Entity != "purchase" || event.UserID != f.opts.UserID {
		return
	}

	if event.Type == events.TypePurchaseCompleted {
		f.mu.Lock()
		f.purchased[event.BoxIndex] = true
		f.mu.Unlock()
	}
}

func (f *Flow) transition(to State) {
	from := f.state
	f.state = to
	if f.opts.OnTransition != nil {
		f.opts.OnTransition(from, to)
	}
}

func (f *Flow) begin(box int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !model.ValidBoxIndex(box) {
		return ErrInvalidBox
	}
	if f.state != StateIdle {
		return ErrBusy
	}
	if f.purchased[box] {
		return ErrAlreadyPurchased
	}
	f.box = box
	f.transition(StateOrderRequested)
	return nil
}

func (f *Flow) move(to State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transition(to)
}

// fail records the failure and leaves the box re-clickable.
func (f *Flow) fail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transition(StateFailed)
	f.transition(StateIdle)
	f.box = -1
	return err
}

// Buy runs one purchase attempt for box. It returns nil only when the server
// verified the payment; ErrCancelled means the buyer closed the checkout.
func (f *Flow) Buy(ctx context.Context, box int) error {
	if err := f.begin(box); err != nil {
		return err
	}

	order, err := f.api.CreateOrder(ctx, f.opts.UnitPrice, f.opts.Currency, box)
	if err != nil {
		return f.fail(fmt.Errorf("create order: %w", err))
	}
	f.move(StateCheckoutOpen)

	confirmation, err := f.checkout.Open(ctx, order)
	switch {
	case errors.Is(err, ErrCancelled):
		f.mu.Lock()
		f.transition(StateIdle)
		f.box = -1
		f.mu.Unlock()
		return ErrCancelled
	case err != nil:
		return f.fail(err)
	}
	if confirmation.OrderID == "" {
		confirmation.OrderID = order.ID
	}
	f.move(StateVerificationPending)

	if err := f.api.Verify(ctx, confirmation, box); err != nil {
		return f.fail(fmt.Errorf("verify payment: %w", err))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchased[box] = true
	f.transition(StatePurchased)
	f.transition(StateIdle)
	f.box = -1
	return nil
}

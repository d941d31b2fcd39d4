package display

import "sync"

// Feedback names used on every Device.
const (
	FeedbackStatus       = "status"
	FeedbackVolume       = "volume"
	FeedbackMute         = "mute"
	FeedbackPower        = "power"
	FeedbackCoolingDown  = "cooling_down"
	FeedbackWarmingUp    = "warming_up"
	FeedbackCurrentInput = "current_input"
)

// Updater is the type-erased view of a feedback channel.
type Updater interface {
	Name() string
	FireUpdate()
}

// Feedback is a named, cached, observable value. The compute function
// reads already-cached device state and must be free of side effects.
//
// FireUpdate always recomputes and pushes to the linked sink, whether or
// not the value changed since the previous fire.
type Feedback[T comparable] struct {
	name    string
	compute func() T

	mu    sync.Mutex
	value T
	fired bool
	sink  func(T)
	link  uint64
}

// BoolFeedback carries digital values.
type BoolFeedback = Feedback[bool]

// IntFeedback carries analog values.
type IntFeedback = Feedback[int]

// StringFeedback carries serial values.
type StringFeedback = Feedback[string]

// NewFeedback creates a feedback channel with the given recompute function.
func NewFeedback[T comparable](name string, compute func() T) *Feedback[T] {
	return &Feedback[T]{
		name:    name,
		compute: compute,
	}
}

// Name returns the feedback name.
func (f *Feedback[T]) Name() string {
	return f.name
}

// Value returns the value from the last fire, or the zero value if the
// feedback has never fired.
func (f *Feedback[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Fired reports whether FireUpdate has run at least once.
func (f *Feedback[T]) Fired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fired
}

// FireUpdate recomputes the value and pushes it to the linked sink.
func (f *Feedback[T]) FireUpdate() {
	v := f.compute()

	f.mu.Lock()
	f.value = v
	f.fired = true
	sink := f.sink
	f.mu.Unlock()

	if sink != nil {
		sink(v)
	}
}

// Link attaches the single sink for this feedback, replacing any previous
// one. The returned subscription detaches it, but only while it is still
// the current sink.
func (f *Feedback[T]) Link(sink func(T)) Subscription {
	f.mu.Lock()
	f.link++
	id := f.link
	f.sink = sink
	f.mu.Unlock()

	return OnceSubscription(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.link == id {
			f.sink = nil
		}
	})
}

package display

import "sync"

// RegistrationResult is the outcome of registering or unregistering a
// driver handle with its owning transport.
type RegistrationResult int

// Registration results reported by drivers.
const (
	RegistrationSuccess RegistrationResult = iota
	RegistrationInvalidID
	RegistrationAlreadyRegistered
	RegistrationNotRegistered
	RegistrationTransportError
)

// String returns the registration result name.
func (r RegistrationResult) String() string {
	switch r {
	case RegistrationSuccess:
		return "success"
	case RegistrationInvalidID:
		return "invalid_id"
	case RegistrationAlreadyRegistered:
		return "already_registered"
	case RegistrationNotRegistered:
		return "not_registered"
	case RegistrationTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// EventID identifies a raw driver event.
type EventID int

// Raw driver events.
const (
	EventOnline EventID = iota + 1
	EventPowerOn
	EventPowerOff
	EventCoolingDown
	EventWarmingUp
	EventMuteOn
	EventVolume
	EventSourceSelect
	EventSourceNameText
	EventLampHours
	EventLampHoursText
)

var eventNames = map[EventID]string{
	EventOnline:         "online",
	EventPowerOn:        "power_on",
	EventPowerOff:       "power_off",
	EventCoolingDown:    "cooling_down",
	EventWarmingUp:      "warming_up",
	EventMuteOn:         "mute_on",
	EventVolume:         "volume",
	EventSourceSelect:   "source_select",
	EventSourceNameText: "source_name_text",
	EventLampHours:      "lamp_hours",
	EventLampHoursText:  "lamp_hours_text",
}

// String returns the event name, or "unknown".
func (e EventID) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Event is a raw signal change reported by the driver. Index is the
// 1-based signal index for indexed signals (source select, source names)
// and zero otherwise.
type Event struct {
	ID    EventID
	Index int
}

// Signals is a snapshot of the driver's cached feedback values.
type Signals struct {
	Online        bool
	Power         bool
	Mute          bool
	CoolingDown   bool
	WarmingUp     bool
	Volume        uint16
	LampHours     uint16
	LampHoursText string
	DeviceID      string
	Firmware      string
	ProjectorName string
	StatusMessage string
	CurrentSource string
	Description   string
	Name          string
	ID            string
}

// Driver is the vendor driver handle for one display. The handle is
// already resolved when handed to NewDevice; the Device owns it
// exclusively from then on.
//
// Implementations must serialise event delivery per handle.
type Driver interface {
	// Register registers the handle with its owning transport.
	Register(key string) RegistrationResult

	// Unregister releases the registration.
	Unregister() RegistrationResult

	// OnEvent subscribes to the raw event stream.
	OnEvent(handler func(Event)) Subscription

	// OnOnlineChange subscribes to the online/offline notice.
	OnOnlineChange(handler func(online bool)) Subscription

	// Signals returns the cached signal values.
	Signals() Signals

	// SourceCount returns the number of source-select signals.
	SourceCount() int

	// SourceSelected reports whether source-select feedback at index is asserted.
	SourceSelected(index int) bool

	// SourceName returns the source name text at index.
	SourceName(index int) string

	// SelectSource asserts the select-source signal at index.
	SelectSource(index int)

	PowerOn()
	PowerOff()
	MuteOn()
	MuteOff()
	MuteToggle()
	VolumeUp()
	VolumeDown()
	SetVolume(level uint16)

	// TypeIdentity returns a stable identity string for the driver type.
	TypeIdentity() string
}

// Subscription is a handle returned at subscribe time.
// Unsubscribe must be safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription. Use OnceSubscription
// when the function is not itself idempotent.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// OnceSubscription wraps fn so repeated Unsubscribe calls run it once.
func OnceSubscription(fn func()) Subscription {
	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(fn)
	})
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

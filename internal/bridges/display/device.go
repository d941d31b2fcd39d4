package display

import (
	"sync"
)

// DefaultTypeName is the factory type name for RoomView-connected displays.
const DefaultTypeName = "rvcdisplay"

// ControlConfig describes how the driver handle reaches the display.
// It is consumed only to resolve the driver.
type ControlConfig struct {
	Method            string            `yaml:"method" json:"method"`
	ControlPortDevKey string            `yaml:"control_port_dev_key" json:"control_port_dev_key,omitempty"`
	IPID              string            `yaml:"ip_id" json:"ip_id,omitempty"`
	ComParams         map[string]string `yaml:"com_params" json:"com_params,omitempty"`
}

// Config holds per-device configuration.
type Config struct {
	Control ControlConfig `yaml:"control" json:"control"`
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger. A nil logger disables logging.
func WithLogger(l Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMonitorConfig overrides the communication monitor timing.
func WithMonitorConfig(cfg MonitorConfig) Option {
	return func(d *Device) {
		d.monitorCfg = cfg
	}
}

type lifecycleState int

const (
	stateInactive lifecycleState = iota
	stateActive
)

// Device binds one RoomView-connected display driver to the bridge.
//
// Lifecycle: NewDevice → Activate → (LinkToBus) → Deactivate.
type Device struct {
	key    string
	name   string
	cfg    Config
	driver Driver
	logger Logger

	monitorCfg MonitorConfig
	monitor    *CommunicationMonitor
	ports      *PortRegistry
	handlers   map[EventID]eventHandler

	status       *IntFeedback
	volume       *IntFeedback
	mute         *BoolFeedback
	power        *BoolFeedback
	coolingDown  *BoolFeedback
	warmingUp    *BoolFeedback
	currentInput *StringFeedback
	feedbacks    []Updater

	mu        sync.Mutex
	state     lifecycleState
	eventSub  Subscription
	onlineSub Subscription
	binding   *Binding

	selectMu     sync.Mutex
	lastSelected int

	routeMu   sync.RWMutex
	routeSubs map[uint64]func(RouteChange)
	routeNext uint64
}

// NewDevice creates a display device around an already-resolved driver
// handle. It performs no network I/O.
func NewDevice(key, name string, cfg Config, driver Driver, opts ...Option) *Device {
	d := &Device{
		key:       key,
		name:      name,
		cfg:       cfg,
		driver:    driver,
		logger:    noopLogger{},
		routeSubs: make(map[uint64]func(RouteChange)),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.monitor = NewCommunicationMonitor(d.monitorCfg)

	d.status = NewFeedback(FeedbackStatus, func() int { return int(d.monitor.Status()) })
	d.volume = NewFeedback(FeedbackVolume, func() int { return int(d.driver.Signals().Volume) })
	d.mute = NewFeedback(FeedbackMute, func() bool { return d.driver.Signals().Mute })
	d.power = NewFeedback(FeedbackPower, func() bool { return d.driver.Signals().Power })
	d.coolingDown = NewFeedback(FeedbackCoolingDown, func() bool { return d.driver.Signals().CoolingDown })
	d.warmingUp = NewFeedback(FeedbackWarmingUp, func() bool { return d.driver.Signals().WarmingUp })
	d.currentInput = NewFeedback(FeedbackCurrentInput, d.currentInputKey)

	d.feedbacks = []Updater{
		d.status,
		d.volume,
		d.mute,
		d.power,
		d.coolingDown,
		d.warmingUp,
		d.currentInput,
	}

	d.ports = newPortRegistry(driver.SourceCount(), driver.SelectSource)
	d.handlers = d.newEventHandlers()

	d.monitor.OnStatusChange(func(CommStatus) {
		d.status.FireUpdate()
	})

	d.logger.Debug("display device constructed",
		"device", key,
		"name", name,
		"ports", d.ports.Len(),
	)

	return d
}

// Key returns the device key.
func (d *Device) Key() string { return d.key }

// Name returns the human-readable device name.
func (d *Device) Name() string { return d.name }

// Config returns the device configuration.
func (d *Device) Config() Config { return d.cfg }

// Monitor returns the device's communication monitor.
func (d *Device) Monitor() *CommunicationMonitor { return d.monitor }

// Ports returns the routing input port registry.
func (d *Device) Ports() *PortRegistry { return d.ports }

// StatusFeedback carries the communication status code.
func (d *Device) StatusFeedback() *IntFeedback { return d.status }

// VolumeFeedback carries the volume level.
func (d *Device) VolumeFeedback() *IntFeedback { return d.volume }

// MuteFeedback carries the mute flag.
func (d *Device) MuteFeedback() *BoolFeedback { return d.mute }

// PowerFeedback carries the power flag.
func (d *Device) PowerFeedback() *BoolFeedback { return d.power }

// CoolingDownFeedback carries the cooling-down flag.
func (d *Device) CoolingDownFeedback() *BoolFeedback { return d.coolingDown }

// WarmingUpFeedback carries the warming-up flag.
func (d *Device) WarmingUpFeedback() *BoolFeedback { return d.warmingUp }

// CurrentInputFeedback carries the active routing port key.
func (d *Device) CurrentInputFeedback() *StringFeedback { return d.currentInput }

// Feedbacks returns every feedback channel in fire order.
func (d *Device) Feedbacks() []Updater {
	out := make([]Updater, len(d.feedbacks))
	copy(out, d.feedbacks)
	return out
}

// IsActive reports whether Activate has succeeded and Deactivate has not
// been called since.
func (d *Device) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == stateActive
}

// Activate registers the driver, pushes initial state, subscribes to the
// driver's events and online notice, and starts the monitor.
//
// Returns false if registration fails; nothing is subscribed in that case.
// Activating an active device logs a warning and returns true.
func (d *Device) Activate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateActive {
		d.logger.Warn("display device already active", "device", d.key)
		return true
	}

	d.logger.Info("activating display device", "device", d.key)

	if res := d.driver.Register(d.key); res != RegistrationSuccess {
		d.logger.Error("display driver registration failed",
			"device", d.key,
			"result", res.String(),
		)
		return false
	}

	d.eventSub = d.driver.OnEvent(d.handleEvent)
	d.onlineSub = d.driver.OnOnlineChange(d.handleOnline)

	// Status is fired by fireAll, once, with its post-start value.
	d.monitor.start(false)
	d.fireAll()
	d.state = stateActive

	return true
}

// Deactivate stops the monitor, cancels driver subscriptions and
// unregisters the driver. Local teardown always happens; the return value
// reports whether unregistration succeeded. Safe to call repeatedly and
// on a device that was never activated.
func (d *Device) Deactivate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.monitor.Stop()

	if d.onlineSub != nil {
		d.onlineSub.Unsubscribe()
		d.onlineSub = nil
	}
	if d.eventSub != nil {
		d.eventSub.Unsubscribe()
		d.eventSub = nil
	}

	d.state = stateInactive

	if res := d.driver.Unregister(); res != RegistrationSuccess {
		d.logger.Warn("display driver unregistration failed",
			"device", d.key,
			"result", res.String(),
		)
		return false
	}

	d.logger.Info("display device deactivated", "device", d.key)
	return true
}

// fireAll re-fires every feedback channel.
func (d *Device) fireAll() {
	for _, f := range d.feedbacks {
		f.FireUpdate()
	}
}

// currentInputKey returns the key of the current input, or "".
func (d *Device) currentInputKey() string {
	if i := d.CurrentInputIndex(); i > 0 {
		return InputKey(i)
	}
	return ""
}

// CurrentInputIndex returns the 1-based index of the current input, or 0
// when no source is asserted. The most recently asserted source wins while
// it stays asserted; otherwise the lowest asserted index is used.
func (d *Device) CurrentInputIndex() int {
	d.selectMu.Lock()
	last := d.lastSelected
	d.selectMu.Unlock()

	if last > 0 && d.driver.SourceSelected(last) {
		return last
	}
	for i := 1; i <= d.ports.Len(); i++ {
		if d.driver.SourceSelected(i) {
			return i
		}
	}
	return 0
}

// PowerOn turns the display on.
func (d *Device) PowerOn() { d.driver.PowerOn() }

// PowerOff turns the display off.
func (d *Device) PowerOff() { d.driver.PowerOff() }

// PowerToggle reads cached power state and sends the opposite command.
func (d *Device) PowerToggle() {
	if d.driver.Signals().Power {
		d.driver.PowerOff()
		return
	}
	d.driver.PowerOn()
}

// SetVolume sets the volume level.
func (d *Device) SetVolume(level uint16) { d.driver.SetVolume(level) }

// MuteOn mutes the display.
func (d *Device) MuteOn() { d.driver.MuteOn() }

// MuteOff unmutes the display.
func (d *Device) MuteOff() { d.driver.MuteOff() }

// MuteToggle toggles mute.
func (d *Device) MuteToggle() { d.driver.MuteToggle() }

// VolumeUp steps the volume up on press. Release and hold do nothing.
func (d *Device) VolumeUp(pressed bool) {
	if pressed {
		d.driver.VolumeUp()
	}
}

// VolumeDown steps the volume down on press. Release and hold do nothing.
func (d *Device) VolumeDown(pressed bool) {
	if pressed {
		d.driver.VolumeDown()
	}
}

// ExecuteSwitch runs an input selection command. Accepted selectors are a
// Selector, a func(), or a *RoutingInputPort; anything else is ignored.
func (d *Device) ExecuteSwitch(selector any) {
	switch s := selector.(type) {
	case Selector:
		if s != nil {
			s()
			return
		}
	case func():
		if s != nil {
			s()
			return
		}
	case *RoutingInputPort:
		if s != nil && s.Selector != nil {
			s.Selector()
			return
		}
	}

	d.logger.Warn("ignoring unsupported input selector",
		"device", d.key,
		"selector", selector,
	)
}

// SelectInput selects the routing port with the given 1-based index.
// Returns false if no port is bound to it.
func (d *Device) SelectInput(index int) bool {
	port, ok := d.ports.ByIndex(index)
	if !ok {
		d.logger.Debug("input select at unbound index",
			"device", d.key,
			"index", index,
		)
		return false
	}
	d.ExecuteSwitch(port.Selector)
	return true
}

// OnRouteChange subscribes to routing-changed notifications.
func (d *Device) OnRouteChange(fn func(RouteChange)) Subscription {
	d.routeMu.Lock()
	d.routeNext++
	id := d.routeNext
	d.routeSubs[id] = fn
	d.routeMu.Unlock()

	return OnceSubscription(func() {
		d.routeMu.Lock()
		delete(d.routeSubs, id)
		d.routeMu.Unlock()
	})
}

func (d *Device) emitRouteChange(rc RouteChange) {
	d.routeMu.RLock()
	subs := make([]func(RouteChange), 0, len(d.routeSubs))
	for _, fn := range d.routeSubs {
		subs = append(subs, fn)
	}
	d.routeMu.RUnlock()

	for _, fn := range subs {
		fn(rc)
	}
}

package supervisor

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
)

// Options holds configuration for creating a supervisor.
type Options struct {
	// Devices are the configured display entries.
	Devices []config.DeviceConfig

	// Factory builds devices. Required.
	Factory *Factory

	// Bus is the join bus devices are linked to. Required.
	Bus display.Bus

	// Registry and Overrides are passed to LinkToBus. Optional.
	Registry  display.JoinMapRegistry
	Overrides display.OverrideSource

	// Logger is optional.
	Logger *logging.Logger
}

type managed struct {
	cfg      config.DeviceConfig
	device   *display.Device
	binding  *display.Binding
	routeSub display.Subscription
}

// Supervisor owns the configured display devices.
//
// Thread Safety: All methods are safe for concurrent use.
type Supervisor struct {
	bus       display.Bus
	registry  display.JoinMapRegistry
	overrides display.OverrideSource
	logger    *logging.Logger

	mu      sync.RWMutex
	devices []*managed
	byKey   map[string]*managed
	started bool
}

// New builds every configured device. Entries with an unknown type or
// malformed properties are skipped with a log line.
func New(opts Options) (*Supervisor, error) {
	if opts.Bus == nil {
		return nil, ErrMissingBus
	}
	factory := opts.Factory
	if factory == nil {
		factory = &Factory{}
	}

	s := &Supervisor{
		bus:       opts.Bus,
		registry:  opts.Registry,
		overrides: opts.Overrides,
		logger:    opts.Logger,
		byKey:     make(map[string]*managed),
	}

	for _, dc := range opts.Devices {
		if _, dup := s.byKey[dc.Key]; dup {
			s.logWarn("skipping duplicate device", "device", dc.Key)
			continue
		}

		dev, err := factory.Build(dc)
		if err != nil {
			s.logWarn("skipping device", "device", dc.Key, "type", dc.Type, "error", err)
			continue
		}

		m := &managed{cfg: dc, device: dev}
		s.devices = append(s.devices, m)
		s.byKey[dc.Key] = m
	}

	return s, nil
}

// Start activates and links every device. Activation failures are not
// retried; the device stays inactive and linked.
func (s *Supervisor) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	linkOpts := display.LinkOptions{Registry: s.registry, Overrides: s.overrides}

	for _, m := range s.devices {
		key := m.cfg.Key

		if !m.device.Activate() {
			s.logWarn("display activation failed; continuing inactive", "device", key)
		}

		binding, err := m.device.LinkToBus(s.bus, m.cfg.Bridge.JoinStart, m.cfg.Bridge.JoinMapKey, linkOpts)
		if err != nil {
			s.logError("display link failed", "device", key, "bus", s.bus.ID(), "error", err)
		} else {
			m.binding = binding
		}

		m.routeSub = m.device.OnRouteChange(func(rc display.RouteChange) {
			s.logInfo("display input changed",
				"device", key,
				"input", rc.Port.Key,
				"index", rc.Port.Index,
				"signal", rc.SignalType.String(),
			)
		})
	}

	s.started = true
	s.logInfo("supervisor started", "devices", len(s.devices), "bus", s.bus.ID())
	return nil
}

// Stop unlinks and deactivates every device. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	for i := len(s.devices) - 1; i >= 0; i-- {
		m := s.devices[i]
		if m.routeSub != nil {
			m.routeSub.Unsubscribe()
			m.routeSub = nil
		}
		if m.binding != nil {
			m.binding.Unlink()
			m.binding = nil
		}
		if m.device.IsActive() && !m.device.Deactivate() {
			s.logWarn("display driver unregister failed", "device", m.cfg.Key)
		}
	}

	s.started = false
	s.logInfo("supervisor stopped")
}

// Lookup returns the device with key.
func (s *Supervisor) Lookup(key string) (*display.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return m.device, true
}

// Devices returns the devices in configuration order.
func (s *Supervisor) Devices() []*display.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*display.Device, len(s.devices))
	for i, m := range s.devices {
		out[i] = m.device
	}
	return out
}

// DeviceCounts summarises devices by lifecycle and comm status.
type DeviceCounts struct {
	Total               int `json:"total"`
	Active              int `json:"active"`
	Connected           int `json:"connected"`
	Warning             int `json:"warning"`
	PollingForReconnect int `json:"polling_for_reconnect"`
	Disconnected        int `json:"disconnected"`
}

// Offline returns the number of devices not connected or warning.
func (c DeviceCounts) Offline() int {
	return c.PollingForReconnect + c.Disconnected
}

// StatusCounts counts devices per comm status.
func (s *Supervisor) StatusCounts() DeviceCounts {
	var c DeviceCounts
	for _, dev := range s.Devices() {
		c.Total++
		if dev.IsActive() {
			c.Active++
		}
		switch dev.Monitor().Status() {
		case display.StatusConnected:
			c.Connected++
		case display.StatusWarning:
			c.Warning++
		case display.StatusPollingForReconnect:
			c.PollingForReconnect++
		default:
			c.Disconnected++
		}
	}
	return c
}

func (s *Supervisor) logInfo(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Info(msg, kv...)
	}
}

func (s *Supervisor) logWarn(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, kv...)
	}
}

func (s *Supervisor) logError(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Error(msg, kv...)
	}
}

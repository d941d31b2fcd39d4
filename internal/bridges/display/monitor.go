package display

import (
	"sync"
	"time"
)

// Communication monitor timing for RoomView-connected displays.
const (
	// DefaultWarningTimeout is the silence after which the monitor warns.
	DefaultWarningTimeout = 12 * time.Second

	// DefaultErrorTimeout is the silence after which the device is offline.
	DefaultErrorTimeout = 30 * time.Second

	// DefaultPollInterval is the monitor poll period. It must stay at or
	// below half the warning timeout.
	DefaultPollInterval = 5 * time.Second
)

// CommStatus is the reachability classification of a device.
// The numeric values are the status codes published on the bus.
type CommStatus int

// Communication states.
const (
	StatusDisconnected CommStatus = iota
	StatusPollingForReconnect
	StatusConnected
	StatusWarning
)

// String returns the status name.
func (s CommStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusPollingForReconnect:
		return "polling_for_reconnect"
	case StatusConnected:
		return "connected"
	case StatusWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MonitorConfig holds configuration for a CommunicationMonitor.
type MonitorConfig struct {
	// WarningTimeout defaults to DefaultWarningTimeout.
	WarningTimeout time.Duration

	// ErrorTimeout defaults to DefaultErrorTimeout.
	ErrorTimeout time.Duration

	// PollInterval defaults to DefaultPollInterval and is clamped to half
	// the warning timeout.
	PollInterval time.Duration

	// Now overrides the clock (tests).
	Now func() time.Time
}

// CommunicationMonitor classifies a device as connected, warning or
// disconnected from the time elapsed since its last observed activity.
//
// It polls on its own timer. Activity is reported through Touch from the
// event delivery path; both paths share one mutex.
type CommunicationMonitor struct {
	warningTimeout time.Duration
	errorTimeout   time.Duration
	pollInterval   time.Duration
	now            func() time.Time

	mu           sync.Mutex
	status       CommStatus
	lastActivity time.Time
	running      bool
	done         chan struct{}
	onChange     func(CommStatus)

	wg sync.WaitGroup
}

// NewCommunicationMonitor creates a stopped monitor in StatusDisconnected.
func NewCommunicationMonitor(cfg MonitorConfig) *CommunicationMonitor {
	if cfg.WarningTimeout <= 0 {
		cfg.WarningTimeout = DefaultWarningTimeout
	}
	if cfg.ErrorTimeout <= 0 {
		cfg.ErrorTimeout = DefaultErrorTimeout
	}
	if cfg.ErrorTimeout < cfg.WarningTimeout {
		cfg.ErrorTimeout = cfg.WarningTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if limit := cfg.WarningTimeout / 2; cfg.PollInterval > limit {
		cfg.PollInterval = limit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &CommunicationMonitor{
		warningTimeout: cfg.WarningTimeout,
		errorTimeout:   cfg.ErrorTimeout,
		pollInterval:   cfg.PollInterval,
		now:            cfg.Now,
		status:         StatusDisconnected,
	}
}

// OnStatusChange sets the callback invoked after every status transition.
// The callback runs outside the monitor lock.
func (m *CommunicationMonitor) OnStatusChange(fn func(CommStatus)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Status returns the current status.
func (m *CommunicationMonitor) Status() CommStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastActivity returns the time of the last observed activity (zero if none).
func (m *CommunicationMonitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// IsRunning reports whether the poll loop is active.
func (m *CommunicationMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start begins polling. Calling Start on a running monitor is a no-op.
func (m *CommunicationMonitor) Start() {
	m.start(true)
}

// start begins polling. With notify false the initial move to
// StatusPollingForReconnect does not invoke the callback.
func (m *CommunicationMonitor) start(notify bool) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	changed := false
	if m.lastActivity.IsZero() && m.status == StatusDisconnected {
		m.status = StatusPollingForReconnect
		changed = true
	}
	status := m.status
	cb := m.onChange
	m.mu.Unlock()

	if notify && changed && cb != nil {
		cb(status)
	}

	m.wg.Add(1)
	go m.pollLoop(done)
}

// Stop halts polling and waits for the loop to exit. The last status is
// left as it was. Safe to call on a stopped monitor.
func (m *CommunicationMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
}

// Touch records device activity and moves the monitor to StatusConnected.
func (m *CommunicationMonitor) Touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	changed := m.status != StatusConnected
	m.status = StatusConnected
	cb := m.onChange
	m.mu.Unlock()

	if changed && cb != nil {
		cb(StatusConnected)
	}
}

func (m *CommunicationMonitor) pollLoop(done <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll evaluates elapsed silence. It is a no-op once the monitor stopped.
func (m *CommunicationMonitor) poll() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	next := m.evaluate(m.now())
	changed := next != m.status
	m.status = next
	cb := m.onChange
	m.mu.Unlock()

	if changed && cb != nil {
		cb(next)
	}
}

// evaluate returns the status implied by now. Caller holds m.mu.
func (m *CommunicationMonitor) evaluate(now time.Time) CommStatus {
	if m.lastActivity.IsZero() {
		if m.status == StatusDisconnected {
			return StatusPollingForReconnect
		}
		return m.status
	}

	elapsed := now.Sub(m.lastActivity)
	switch {
	case elapsed >= m.errorTimeout:
		return StatusDisconnected
	case elapsed >= m.warningTimeout:
		return StatusWarning
	default:
		return StatusConnected
	}
}

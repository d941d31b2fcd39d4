package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

// DefaultBridgeID is the bridge name used in the health topic.
const DefaultBridgeID = "display"

const defaultHealthInterval = 30 * time.Second

// HealthStatus is the bridge's overall state.
type HealthStatus string

// Health states.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained payload on graylogic/health/{bridge}.
type HealthMessage struct {
	Bridge        string        `json:"bridge"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        HealthStatus  `json:"status"`
	Version       string        `json:"version,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Reason        string        `json:"reason,omitempty"`
	Devices       *DeviceCounts `json:"devices,omitempty"`
}

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatusSource reports device counts. *Supervisor satisfies it.
type StatusSource interface {
	StatusCounts() DeviceCounts
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID defaults to "display".
	BridgeID string
	Version  string

	// Interval defaults to 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    StatusSource
}

// HealthReporter publishes retained bridge health at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    StatusSource

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	bridgeID := cfg.BridgeID
	if bridgeID == "" {
		bridgeID = DefaultBridgeID
	}

	return &HealthReporter{
		bridgeID:  bridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		done:      make(chan struct{}),
	}
}

// HealthWill returns the last-will message for the bridge's health topic,
// for use with mqtt.WithWill before the reporter exists.
func HealthWill(bridgeID string) (mqtt.Will, error) {
	if bridgeID == "" {
		bridgeID = DefaultBridgeID
	}
	payload, err := json.Marshal(HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	})
	if err != nil {
		return mqtt.Will{}, fmt.Errorf("encoding health will: %w", err)
	}
	return mqtt.Will{
		Topic:    mqtt.Topics{}.BridgeHealth(bridgeID),
		Payload:  payload,
		QoS:      1,
		Retained: true,
	}, nil
}

// Topic returns the health topic.
func (h *HealthReporter) Topic() string {
	return mqtt.Topics{}.BridgeHealth(h.bridgeID)
}

// SetLogger sets the logger for publish failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start publishes immediately and then every interval until Stop or ctx
// is cancelled.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		if err := h.publish(HealthStopping, "bridge stopping"); err != nil {
			h.logError("failed to publish stopping health", err)
		}
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source != nil {
		if offline := h.source.StatusCounts().Offline(); offline > 0 {
			return HealthDegraded, fmt.Sprintf("%d display(s) offline", offline)
		}
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.source != nil {
		counts := h.source.StatusCounts()
		msg.Devices = &counts
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding health: %w", err)
	}
	return h.publisher.Publish(h.Topic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

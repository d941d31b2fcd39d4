package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/influxdb"
)

const defaultTelemetryInterval = 60 * time.Second

// SampleWriter receives display samples. *influxdb.Client satisfies it.
type SampleWriter interface {
	WriteDisplaySample(s influxdb.DisplaySample)
}

// DeviceSource lists devices to sample. *Supervisor satisfies it.
type DeviceSource interface {
	Devices() []*display.Device
}

// TelemetryConfig holds configuration for the sampler.
type TelemetryConfig struct {
	Site     string
	Interval time.Duration
	Writer   SampleWriter
	Source   DeviceSource
	Now      func() time.Time
}

// Telemetry periodically writes one display_telemetry sample per device.
type Telemetry struct {
	site     string
	interval time.Duration
	writer   SampleWriter
	source   DeviceSource
	now      func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewTelemetry creates a sampler. Call Start to begin sampling.
func NewTelemetry(cfg TelemetryConfig) *Telemetry {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultTelemetryInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Telemetry{
		site:     cfg.Site,
		interval: interval,
		writer:   cfg.Writer,
		source:   cfg.Source,
		now:      now,
		done:     make(chan struct{}),
	}
}

// Start samples every interval until Stop or ctx is cancelled.
func (t *Telemetry) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case <-ticker.C:
				t.SampleNow()
			}
		}
	}()
}

// Stop ends sampling. Safe to call multiple times.
func (t *Telemetry) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
}

// SampleNow writes one sample per device and returns the count written.
func (t *Telemetry) SampleNow() int {
	if t.writer == nil || t.source == nil {
		return 0
	}

	ts := t.now()
	n := 0
	for _, dev := range t.source.Devices() {
		st := dev.State()
		t.writer.WriteDisplaySample(influxdb.DisplaySample{
			Site:       t.site,
			DeviceKey:  st.Key,
			Power:      st.Power,
			Mute:       st.Mute,
			Volume:     int(st.Volume),
			LampHours:  int(st.LampHours),
			CommStatus: st.CommStatus,
			Online:     st.Online,
			Time:       ts,
		})
		n++
	}
	return n
}

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDisplay is the measurement written for display samples.
const MeasurementDisplay = "display_telemetry"

// DisplaySample is one periodic reading of a display's feedback values.
type DisplaySample struct {
	Site       string
	DeviceKey  string
	Power      bool
	Mute       bool
	Volume     int
	LampHours  int
	CommStatus string
	Online     bool
	Time       time.Time
}

// WriteDisplaySample queues one display_telemetry point tagged by site,
// device and comm status. Dropped silently when not connected.
func (c *Client) WriteDisplaySample(s DisplaySample) {
	if !c.IsConnected() {
		return
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(newDisplayPoint(s, ts))
}

func newDisplayPoint(s DisplaySample, ts time.Time) *write.Point {
	tags := map[string]string{
		"device": s.DeviceKey,
		"status": s.CommStatus,
	}
	if s.Site != "" {
		tags["site"] = s.Site
	}

	return write.NewPoint(MeasurementDisplay, tags, map[string]any{
		"power":      s.Power,
		"mute":       s.Mute,
		"volume":     s.Volume,
		"lamp_hours": s.LampHours,
		"online":     s.Online,
	}, ts)
}

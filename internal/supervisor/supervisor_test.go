package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/driver/roomview"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
)

func newTestSupervisor(t *testing.T, entries ...config.DeviceConfig) (*Supervisor, *mockMQTT, *mockBus, *bytes.Buffer) {
	t.Helper()
	tr := newMockMQTT()
	bus := newMockBus()
	var logs bytes.Buffer

	sup, err := New(Options{
		Devices: entries,
		Factory: &Factory{MQTT: tr},
		Bus:     bus,
		Logger:  testLogger(&logs),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sup, tr, bus, &logs
}

func TestNewRequiresBus(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrMissingBus) {
		t.Errorf("New() error = %v, want ErrMissingBus", err)
	}
}

func TestNewSkipsBadEntries(t *testing.T) {
	sup, _, _, logs := newTestSupervisor(t,
		deviceEntry(t, "display-1", "rvcdisplay", 1, "control: {method: ipid, ip_id: '0x05'}"),
		deviceEntry(t, "display-2", "projector", 101, "control: {method: ipid, ip_id: '0x06'}"),
		deviceEntry(t, "display-1", "rvcdisplay", 201, "control: {method: ipid, ip_id: '0x07'}"),
		deviceEntry(t, "display-3", "rvcdisplay", 301, "control: {method: ipid, ip_id: '0x08'}"),
	)

	devs := sup.Devices()
	if len(devs) != 2 || devs[0].Key() != "display-1" || devs[1].Key() != "display-3" {
		keys := make([]string, len(devs))
		for i, d := range devs {
			keys[i] = d.Key()
		}
		t.Fatalf("Devices() = %v, want [display-1 display-3]", keys)
	}
	if _, ok := sup.Lookup("display-2"); ok {
		t.Error("unknown type should be skipped")
	}
	if !strings.Contains(logs.String(), "skipping duplicate device") {
		t.Error("duplicate key not logged")
	}
}

func TestStartActivatesAndLinks(t *testing.T) {
	sup, tr, bus, _ := newTestSupervisor(t,
		deviceEntry(t, "display-1", "rvcdisplay", 1, "control: {method: ipid, ip_id: '0x05'}"),
		deviceEntry(t, "display-2", "rvcdisplay", 101, "control: {method: ipid, ip_id: '0x06'}"),
	)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sup.Stop()

	for _, d := range sup.Devices() {
		if !d.IsActive() {
			t.Errorf("%s not active", d.Key())
		}
	}
	if got := bus.stringAt(1); got != roomview.TypeIdentity {
		t.Errorf("serial join 1 = %q, want driver identity", got)
	}
	if got := bus.stringAt(103); got != "DISPLAY-2" {
		t.Errorf("serial join 103 = %q, want device name", got)
	}
	if bus.onlineSubscribers() != 2 {
		t.Errorf("online subscribers = %d, want 2", bus.onlineSubscribers())
	}
	if tr.last("graylogic/roomview/05/registration") == nil {
		t.Error("display-1 registration not published")
	}

	if err := sup.Start(context.Background()); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
}

func TestRegistrationFailureStaysInactiveButLinked(t *testing.T) {
	sup, _, bus, logs := newTestSupervisor(t,
		deviceEntry(t, "display-bad", "rvcdisplay", 51, "control: {method: ipid, ip_id: '0x01'}"),
	)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sup.Stop()

	dev, ok := sup.Lookup("display-bad")
	if !ok {
		t.Fatal("device missing")
	}
	if dev.IsActive() {
		t.Error("device with invalid ip id should stay inactive")
	}
	if got := bus.stringAt(51); got != roomview.TypeIdentity {
		t.Errorf("serial join 51 = %q, want driver identity (device should be linked)", got)
	}
	if !strings.Contains(logs.String(), "display activation failed") {
		t.Error("activation failure not logged")
	}

	counts := sup.StatusCounts()
	if counts.Total != 1 || counts.Active != 0 || counts.Disconnected != 1 {
		t.Errorf("StatusCounts() = %+v", counts)
	}
}

func TestStopDeactivatesEverything(t *testing.T) {
	sup, tr, bus, _ := newTestSupervisor(t,
		deviceEntry(t, "display-1", "rvcdisplay", 1, "control: {method: ipid, ip_id: '0x05'}"),
		deviceEntry(t, "display-2", "rvcdisplay", 101, "control: {method: ipid, ip_id: '0x06'}"),
	)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sup.Stop()
	sup.Stop()

	for _, d := range sup.Devices() {
		if d.IsActive() {
			t.Errorf("%s still active after Stop", d.Key())
		}
		if d.Monitor().IsRunning() {
			t.Errorf("%s monitor still running", d.Key())
		}
	}
	if bus.onlineSubscribers() != 0 {
		t.Errorf("online subscribers = %d, want 0", bus.onlineSubscribers())
	}
	if !strings.Contains(string(tr.last("graylogic/roomview/06/registration")), "unregistered") {
		t.Error("display-2 unregistration not published")
	}
}

func TestStatusCountsAndRouteLogging(t *testing.T) {
	sup, tr, _, logs := newTestSupervisor(t,
		deviceEntry(t, "display-1", "rvcdisplay", 1, "control: {method: ipid, ip_id: '0x05'}\nsource_count: 3"),
		deviceEntry(t, "display-2", "rvcdisplay", 101, "control: {method: ipid, ip_id: '0x06'}"),
	)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sup.Stop()

	counts := sup.StatusCounts()
	if counts.Active != 2 || counts.PollingForReconnect != 2 || counts.Offline() != 2 {
		t.Errorf("StatusCounts() before activity = %+v", counts)
	}

	if err := tr.deliver("graylogic/roomview/05/feedback/source_select/2", "1"); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}

	counts = sup.StatusCounts()
	if counts.Connected != 1 || counts.PollingForReconnect != 1 {
		t.Errorf("StatusCounts() after activity = %+v", counts)
	}

	dev, _ := sup.Lookup("display-1")
	if dev.CurrentInputFeedback().Value() != display.InputKey(2) {
		t.Errorf("current input = %q", dev.CurrentInputFeedback().Value())
	}
	if !strings.Contains(logs.String(), "display input changed") {
		t.Error("route change not logged")
	}
}

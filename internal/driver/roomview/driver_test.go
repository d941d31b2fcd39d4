package roomview

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  string
	retained bool
}

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	subErrOn   string
	publishErr error
}

func newMockTransport() *mockTransport {
	return &mockTransport{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockTransport) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, string(payload), retained})
	return nil
}

func (m *mockTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErrOn != "" && strings.HasSuffix(topic, m.subErrOn) {
		return errors.New("subscribe refused")
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

// deliver routes topic to an exact or trailing-# subscription.
func (m *mockTransport) deliver(topic, payload string) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	if !ok {
		for filter, h := range m.handlers {
			if strings.HasSuffix(filter, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "#")) {
				handler, ok = h, true
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscriber")
	}
	return handler(topic, []byte(payload))
}

func (m *mockTransport) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *mockTransport) publishedTo(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func newTestDriver(t *testing.T) (*Driver, *mockTransport) {
	t.Helper()
	tr := newMockTransport()
	d, err := New(Options{
		IPID:         "0x05",
		Name:         "Boardroom Projector",
		SourceCount:  4,
		MQTT:         tr,
		NewSessionID: func() string { return "session-1" },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, tr
}

func registered(t *testing.T) (*Driver, *mockTransport) {
	t.Helper()
	d, tr := newTestDriver(t)
	if got := d.Register("display-boardroom"); got != display.RegistrationSuccess {
		t.Fatalf("Register() = %v", got)
	}
	return d, tr
}

func TestParseIPID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0x05", "05", false},
		{"0X1A", "1a", false},
		{"fe", "fe", false},
		{"3", "03", false},
		{"0x02", "", true},
		{"0xff", "", true},
		{"", "", true},
		{"zz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIPID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIPID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIPID) {
				t.Errorf("error = %v, want ErrInvalidIPID", err)
			}
			if got != tt.want {
				t.Errorf("ParseIPID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewRequiresTransport(t *testing.T) {
	if _, err := New(Options{IPID: "0x05"}); !errors.Is(err, ErrMissingTransport) {
		t.Errorf("New() error = %v, want ErrMissingTransport", err)
	}
}

func TestRegister(t *testing.T) {
	d, tr := registered(t)

	if tr.subscriptionCount() != 2 {
		t.Errorf("subscriptions = %d, want 2", tr.subscriptionCount())
	}
	if d.Session() != "session-1" {
		t.Errorf("Session() = %q", d.Session())
	}

	recs := tr.publishedTo("graylogic/roomview/05/registration")
	if len(recs) != 1 || !recs[0].retained {
		t.Fatalf("registration records = %+v", recs)
	}
	var rec registrationRecord
	if err := json.Unmarshal([]byte(recs[0].payload), &rec); err != nil {
		t.Fatalf("registration payload: %v", err)
	}
	if rec.Device != "display-boardroom" || rec.Session != "session-1" || rec.Status != "registered" || rec.IPID != "05" {
		t.Errorf("record = %+v", rec)
	}

	if got := d.Register("display-boardroom"); got != display.RegistrationAlreadyRegistered {
		t.Errorf("second Register() = %v, want AlreadyRegistered", got)
	}
}

func TestRegisterFailures(t *testing.T) {
	t.Run("invalid ip id", func(t *testing.T) {
		d, err := New(Options{IPID: "0x01", MQTT: newMockTransport()})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := d.Register("x"); got != display.RegistrationInvalidID {
			t.Errorf("Register() = %v, want InvalidID", got)
		}
	})

	t.Run("subscribe refused", func(t *testing.T) {
		d, tr := newTestDriver(t)
		tr.subErrOn = "/online"
		if got := d.Register("x"); got != display.RegistrationTransportError {
			t.Errorf("Register() = %v, want TransportError", got)
		}
		if tr.subscriptionCount() != 0 {
			t.Errorf("subscriptions left behind: %d", tr.subscriptionCount())
		}
	})

	t.Run("publish refused", func(t *testing.T) {
		d, tr := newTestDriver(t)
		tr.publishErr = errors.New("offline")
		if got := d.Register("x"); got != display.RegistrationTransportError {
			t.Errorf("Register() = %v, want TransportError", got)
		}
		if tr.subscriptionCount() != 0 {
			t.Errorf("subscriptions left behind: %d", tr.subscriptionCount())
		}
	})
}

func TestUnregister(t *testing.T) {
	d, tr := newTestDriver(t)

	if got := d.Unregister(); got != display.RegistrationNotRegistered {
		t.Errorf("Unregister() before Register = %v", got)
	}

	d.Register("display-boardroom")
	if got := d.Unregister(); got != display.RegistrationSuccess {
		t.Fatalf("Unregister() = %v", got)
	}
	if tr.subscriptionCount() != 0 {
		t.Errorf("subscriptions = %d, want 0", tr.subscriptionCount())
	}

	recs := tr.publishedTo("graylogic/roomview/05/registration")
	if len(recs) != 2 || !strings.Contains(recs[1].payload, `"unregistered"`) {
		t.Errorf("registration records = %+v", recs)
	}

	if got := d.Register("display-boardroom"); got != display.RegistrationSuccess {
		t.Errorf("re-Register() = %v", got)
	}
}

func TestFeedbackEmitsOneEvent(t *testing.T) {
	d, tr := registered(t)

	var mu sync.Mutex
	var events []display.Event
	d.OnEvent(func(ev display.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	tests := []struct {
		topic   string
		payload string
		want    display.Event
	}{
		{"feedback/power", "1", display.Event{ID: display.EventPowerOn}},
		{"feedback/power", "0", display.Event{ID: display.EventPowerOff}},
		{"feedback/mute", "1", display.Event{ID: display.EventMuteOn}},
		{"feedback/cooling_down", "1", display.Event{ID: display.EventCoolingDown}},
		{"feedback/warming_up", "0", display.Event{ID: display.EventWarmingUp}},
		{"feedback/volume", "32768", display.Event{ID: display.EventVolume}},
		{"feedback/lamp_hours", "1200", display.Event{ID: display.EventLampHours}},
		{"feedback/lamp_hours_text", "1200 hrs", display.Event{ID: display.EventLampHoursText}},
		{"feedback/source_select/3", "1", display.Event{ID: display.EventSourceSelect, Index: 3}},
		{"feedback/source_name/2", "HDMI 2", display.Event{ID: display.EventSourceNameText, Index: 2}},
		{"feedback/online", "1", display.Event{ID: display.EventOnline}},
	}

	for _, tt := range tests {
		mu.Lock()
		events = nil
		mu.Unlock()

		if err := tr.deliver("graylogic/roomview/05/"+tt.topic, tt.payload); err != nil {
			t.Fatalf("deliver(%s) error = %v", tt.topic, err)
		}

		mu.Lock()
		got := events
		mu.Unlock()
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%s: events = %v, want [%v]", tt.topic, got, tt.want)
		}
	}

	sig := d.Signals()
	if sig.Power || !sig.Mute || !sig.CoolingDown || sig.Volume != 32768 || sig.LampHours != 1200 || sig.LampHoursText != "1200 hrs" {
		t.Errorf("Signals() = %+v", sig)
	}
	if !d.SourceSelected(3) || d.SourceSelected(1) || d.SourceName(2) != "HDMI 2" {
		t.Error("indexed cache not updated")
	}
}

func TestIdentityFeedbackUpdatesCacheOnly(t *testing.T) {
	d, tr := registered(t)

	count := 0
	d.OnEvent(func(display.Event) { count++ })

	for signal, value := range map[string]string{
		"device_id":      "RV-123",
		"firmware":       "2.1.0",
		"projector_name": "Boardroom",
		"status_message": "OK",
		"current_source": "HDMI 1",
	} {
		if err := tr.deliver("graylogic/roomview/05/feedback/"+signal, value); err != nil {
			t.Fatalf("deliver(%s) error = %v", signal, err)
		}
	}

	if count != 0 {
		t.Errorf("events = %d, want 0", count)
	}
	sig := d.Signals()
	if sig.DeviceID != "RV-123" || sig.Firmware != "2.1.0" || sig.ProjectorName != "Boardroom" ||
		sig.StatusMessage != "OK" || sig.CurrentSource != "HDMI 1" {
		t.Errorf("Signals() = %+v", sig)
	}
	if sig.Name != "Boardroom Projector" || sig.ID != "05" {
		t.Errorf("Name/ID = %q/%q", sig.Name, sig.ID)
	}
}

func TestBadFeedbackIsRejected(t *testing.T) {
	d, tr := registered(t)

	count := 0
	d.OnEvent(func(display.Event) { count++ })

	bad := []struct{ topic, payload string }{
		{"feedback/power", "maybe"},
		{"feedback/volume", "-1"},
		{"feedback/source_select/0", "1"},
		{"feedback/source_select/5", "1"},
		{"feedback/source_name/99999999", "Stray"},
		{"feedback/source_select", "1"},
		{"feedback/bogus", "1"},
		{"feedback/", "1"},
	}
	for _, b := range bad {
		if err := tr.deliver("graylogic/roomview/05/"+b.topic, b.payload); err == nil {
			t.Errorf("deliver(%s, %q) should fail", b.topic, b.payload)
		}
	}
	if count != 0 {
		t.Errorf("events = %d, want 0", count)
	}
}

func TestOutOfRangeIndexNotCached(t *testing.T) {
	d, tr := registered(t)

	_ = tr.deliver("graylogic/roomview/05/feedback/source_select/99999999", "1")
	_ = tr.deliver("graylogic/roomview/05/feedback/source_name/5", "Stray")

	d.mu.RLock()
	selects, names := len(d.cache.sourceSelect), len(d.cache.sourceName)
	d.mu.RUnlock()
	if selects != 0 || names != 0 {
		t.Errorf("cache sizes = %d/%d, want 0/0", selects, names)
	}
}

func TestSourceSelectIsExclusive(t *testing.T) {
	d, tr := registered(t)

	_ = tr.deliver("graylogic/roomview/05/feedback/source_select/1", "1")
	_ = tr.deliver("graylogic/roomview/05/feedback/source_select/3", "1")

	if d.SourceSelected(1) {
		t.Error("SourceSelected(1) = true after selecting 3")
	}
	if !d.SourceSelected(3) {
		t.Error("SourceSelected(3) = false")
	}

	_ = tr.deliver("graylogic/roomview/05/feedback/source_select/3", "0")
	if d.SourceSelected(3) {
		t.Error("SourceSelected(3) = true after clear")
	}
}

func TestCurrentInputAfterUpwardSwitch(t *testing.T) {
	drv, tr := newTestDriver(t)
	dev := display.NewDevice("display-boardroom", "Boardroom", display.Config{}, drv)
	if !dev.Activate() {
		t.Fatal("Activate() = false")
	}
	defer dev.Deactivate()

	var lastRoute string
	dev.OnRouteChange(func(rc display.RouteChange) { lastRoute = rc.Port.Key })

	for _, step := range []struct{ index, payload string }{
		{"1", "1"},
		{"3", "1"},
		{"1", "0"},
	} {
		if err := tr.deliver("graylogic/roomview/05/feedback/source_select/"+step.index, step.payload); err != nil {
			t.Fatalf("deliver(source_select/%s) error = %v", step.index, err)
		}
	}

	if lastRoute != "input3" {
		t.Errorf("last route change = %q, want input3", lastRoute)
	}
	if got := dev.CurrentInputFeedback().Value(); got != "input3" {
		t.Errorf("current input feedback = %q, want input3", got)
	}
	if dev.CurrentInputIndex() != 3 {
		t.Errorf("CurrentInputIndex() = %d, want 3", dev.CurrentInputIndex())
	}
}

func TestOnlineNotice(t *testing.T) {
	d, tr := registered(t)

	var got []bool
	sub := d.OnOnlineChange(func(online bool) { got = append(got, online) })

	_ = tr.deliver("graylogic/roomview/05/online", "true")
	if !d.Signals().Online {
		t.Error("Online not cached")
	}
	_ = tr.deliver("graylogic/roomview/05/online", "0")

	sub.Unsubscribe()
	sub.Unsubscribe()
	_ = tr.deliver("graylogic/roomview/05/online", "1")

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("notices = %v, want [true false]", got)
	}
}

func TestCommands(t *testing.T) {
	d, tr := newTestDriver(t)

	d.PowerOn()
	if len(tr.publishedTo("graylogic/roomview/05/command/power_on")) != 0 {
		t.Fatal("command sent while unregistered")
	}

	d.Register("display-boardroom")

	tests := []struct {
		send    func()
		command string
		payload string
	}{
		{d.PowerOn, CommandPowerOn, "1"},
		{d.PowerOff, CommandPowerOff, "1"},
		{d.MuteOn, CommandMuteOn, "1"},
		{d.MuteOff, CommandMuteOff, "1"},
		{d.MuteToggle, CommandMuteToggle, "1"},
		{d.VolumeUp, CommandVolumeUp, "1"},
		{d.VolumeDown, CommandVolumeDown, "1"},
		{func() { d.SetVolume(1000) }, CommandSetVolume, "1000"},
		{func() { d.SelectSource(4) }, CommandSelectSource, "4"},
	}

	for _, tt := range tests {
		tt.send()
		got := tr.publishedTo("graylogic/roomview/05/command/" + tt.command)
		if len(got) != 1 || got[0].payload != tt.payload || got[0].retained {
			t.Errorf("%s: published %+v, want one non-retained %q", tt.command, got, tt.payload)
		}
	}

	d.SelectSource(5)
	d.SelectSource(0)
	if n := len(tr.publishedTo("graylogic/roomview/05/command/select_source")); n != 1 {
		t.Errorf("out-of-range selects published: %d", n)
	}
}

func TestDefaults(t *testing.T) {
	d, err := New(Options{IPID: "0x05", MQTT: newMockTransport()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.SourceCount() != DefaultSourceCount {
		t.Errorf("SourceCount() = %d, want %d", d.SourceCount(), DefaultSourceCount)
	}
	if d.TypeIdentity() != TypeIdentity {
		t.Errorf("TypeIdentity() = %q", d.TypeIdentity())
	}
	if d.IPID() != "05" {
		t.Errorf("IPID() = %q", d.IPID())
	}
}

func TestDeviceIntegration(t *testing.T) {
	drv, tr := newTestDriver(t)
	dev := display.NewDevice("display-boardroom", "Boardroom", display.Config{}, drv)

	if !dev.Activate() {
		t.Fatal("Activate() = false")
	}
	defer dev.Deactivate()

	var changes []display.RouteChange
	dev.OnRouteChange(func(rc display.RouteChange) { changes = append(changes, rc) })

	_ = tr.deliver("graylogic/roomview/05/feedback/power", "1")
	if !dev.PowerFeedback().Value() {
		t.Error("power feedback not updated")
	}

	_ = tr.deliver("graylogic/roomview/05/feedback/source_select/2", "1")
	if got := dev.CurrentInputFeedback().Value(); got != "input2" {
		t.Errorf("current input = %q, want input2", got)
	}
	if len(changes) != 1 || changes[0].Port.Key != "input2" {
		t.Errorf("route changes = %+v", changes)
	}

	if dev.Monitor().Status() != display.StatusConnected {
		t.Errorf("monitor status = %v, want connected", dev.Monitor().Status())
	}
}

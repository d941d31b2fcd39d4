package api

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/driver/roomview"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-display/internal/supervisor"
)

// mockMQTT implements roomview.Transport and Subscriber.
type mockMQTT struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(string, []byte, byte, bool) error { return nil }

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTT) hasHandler(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

func (m *mockMQTT) deliver(topic, payload string) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.handlers {
		if filter == topic || (strings.HasSuffix(filter, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "#"))) {
			handler = h
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no subscriber")
	}
	return handler(topic, []byte(payload))
}

// nopBus implements display.Bus without recording anything.
type nopBus struct{}

func (nopBus) ID() string                                         { return "eisc-test" }
func (nopBus) SetBool(uint32, bool)                               {}
func (nopBus) SetUshort(uint32, uint16)                           {}
func (nopBus) SetString(uint32, string)                           {}
func (nopBus) OnBool(uint32, func(bool)) display.Subscription     { return display.SubscriptionFunc(nil) }
func (nopBus) OnUshort(uint32, func(uint16)) display.Subscription { return display.SubscriptionFunc(nil) }
func (nopBus) OnOnlineChange(func(bool)) display.Subscription     { return display.SubscriptionFunc(nil) }

// displaySet implements DisplaySource over a fixed list.
type displaySet []*display.Device

func (s displaySet) Devices() []*display.Device { return s }

func (s displaySet) Lookup(key string) (*display.Device, bool) {
	for _, d := range s {
		if d.Key() == key {
			return d, true
		}
	}
	return nil, false
}

// panicDisplays panics on every lookup.
type panicDisplays struct{}

func (panicDisplays) Devices() []*display.Device            { panic("boom") }
func (panicDisplays) Lookup(string) (*display.Device, bool) { panic("boom") }

type fixedCounts supervisor.DeviceCounts

func (f fixedCounts) StatusCounts() supervisor.DeviceCounts { return supervisor.DeviceCounts(f) }

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// newTestDisplay builds an active display on ip id 0x05 with four sources.
// When link is set it is linked to nopBus at join 11.
func newTestDisplay(t *testing.T, tr *mockMQTT, key string, link bool) *display.Device {
	t.Helper()

	drv, err := roomview.New(roomview.Options{
		IPID:        "0x05",
		Name:        "Boardroom",
		Description: "Boardroom projector",
		SourceCount: 4,
		MQTT:        tr,
	})
	if err != nil {
		t.Fatalf("roomview.New() error = %v", err)
	}

	dev := display.NewDevice(key, "Boardroom", display.Config{Control: display.ControlConfig{Method: "ipid", IPID: "0x05"}}, drv)
	if !dev.Activate() {
		t.Fatal("Activate() = false")
	}
	t.Cleanup(func() { dev.Deactivate() })

	if link {
		if _, err := dev.LinkToBus(nopBus{}, 11, "", display.LinkOptions{}); err != nil {
			t.Fatalf("LinkToBus() error = %v", err)
		}
	}
	return dev
}

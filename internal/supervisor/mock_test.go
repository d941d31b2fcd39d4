package supervisor

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

// mockMQTT implements roomview.Transport and HealthPublisher.
type mockMQTT struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published map[string][]byte
	connected bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(map[string][]byte),
		connected: true,
	}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = payload
	return nil
}

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
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *mockMQTT) last(topic string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[topic]
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

// mockBus implements display.Bus.
type mockBus struct {
	mu      sync.Mutex
	strings map[uint32]string
	online  map[int]func(bool)
	nextID  int
}

func newMockBus() *mockBus {
	return &mockBus{strings: make(map[uint32]string), online: make(map[int]func(bool))}
}

func (b *mockBus) ID() string               { return "eisc-test" }
func (b *mockBus) SetBool(uint32, bool)     {}
func (b *mockBus) SetUshort(uint32, uint16) {}
func (b *mockBus) OnBool(uint32, func(bool)) display.Subscription {
	return display.SubscriptionFunc(nil)
}
func (b *mockBus) OnUshort(uint32, func(uint16)) display.Subscription {
	return display.SubscriptionFunc(nil)
}

func (b *mockBus) SetString(join uint32, value string) {
	b.mu.Lock()
	b.strings[join] = value
	b.mu.Unlock()
}

func (b *mockBus) OnOnlineChange(h func(bool)) display.Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.online[id] = h
	b.mu.Unlock()
	return display.OnceSubscription(func() {
		b.mu.Lock()
		delete(b.online, id)
		b.mu.Unlock()
	})
}

func (b *mockBus) stringAt(join uint32) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strings[join]
}

func (b *mockBus) onlineSubscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.online)
}

// deviceEntry builds a device config with properties parsed from YAML.
func deviceEntry(t *testing.T, key, typ string, joinStart uint32, props string) config.DeviceConfig {
	t.Helper()
	dc := config.DeviceConfig{
		Key:    key,
		Name:   strings.ToUpper(key),
		Type:   typ,
		Bridge: config.DeviceBridgeConfig{JoinStart: joinStart},
	}
	if props != "" {
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(props), &doc); err != nil {
			t.Fatalf("yaml: %v", err)
		}
		dc.Properties = *doc.Content[0]
	}
	return dc
}

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", buf)
}

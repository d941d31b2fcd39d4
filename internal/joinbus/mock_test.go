package joinbus

import (
	"errors"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	unsubbed   []string
	publishErr error
	subErr     error
}

func newMockTransport() *mockTransport {
	return &mockTransport{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, string(payload), qos, retained})
	return nil
}

func (m *mockTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubbed = append(m.unsubbed, topic)
	return nil
}

// deliver routes a message to the handler whose filter ends in # and
// prefixes the topic.
func (m *mockTransport) deliver(topic, payload string) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.handlers {
		if strings.HasSuffix(filter, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "#")) {
			handler = h
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return errors.New("no subscriber")
	}
	return handler(topic, []byte(payload))
}

func (m *mockTransport) last(topic string) (published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			return m.published[i], true
		}
	}
	return published{}, false
}

func (m *mockTransport) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

package joinbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

const (
	defaultQoS   = 1
	storeTimeout = 5 * time.Second
)

// Transport is the MQTT surface the bus uses. *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Store persists join maps registered on the bus.
type Store interface {
	SaveJoinMap(ctx context.Context, busID, deviceKey string, m *display.JoinMap) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bus.
type Options struct {
	// ID is the bus identifier used in topics (bus.id).
	ID string

	// MQTT is the transport. Required.
	MQTT Transport

	// QoS for join publishes and the set subscription. Zero means 1.
	QoS byte

	// Store is optional join-map persistence.
	Store Store

	// Logger is optional.
	Logger Logger
}

type joinKey struct {
	kind string
	join uint32
}

// Bus is a display.Bus and display.JoinMapRegistry over MQTT.
//
// Thread Safety: All methods are safe for concurrent use. Handlers are
// called outside the bus lock.
type Bus struct {
	id     string
	mqtt   Transport
	qos    byte
	store  Store
	topics mqtt.Topics
	logger Logger

	mu       sync.RWMutex
	nextID   uint64
	bools    map[joinKey]map[uint64]func(bool)
	ushorts  map[joinKey]map[uint64]func(uint16)
	online   map[uint64]func(bool)
	joinMaps map[string]*display.JoinMap
	started  bool
}

var _ display.Bus = (*Bus)(nil)
var _ display.JoinMapRegistry = (*Bus)(nil)

// New creates a bus. Call Start to receive set commands.
func New(opts Options) (*Bus, error) {
	if opts.MQTT == nil {
		return nil, ErrMissingTransport
	}
	if opts.ID == "" || strings.ContainsAny(opts.ID, "/+#") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBusID, opts.ID)
	}

	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}

	return &Bus{
		id:       opts.ID,
		mqtt:     opts.MQTT,
		qos:      qos,
		store:    opts.Store,
		logger:   opts.Logger,
		bools:    make(map[joinKey]map[uint64]func(bool)),
		ushorts:  make(map[joinKey]map[uint64]func(uint16)),
		online:   make(map[uint64]func(bool)),
		joinMaps: make(map[string]*display.JoinMap),
	}, nil
}

// ID returns the bus ID.
func (b *Bus) ID() string {
	return b.id
}

// Start subscribes to the bus's set topics.
func (b *Bus) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	topic := b.topics.EISCAllSets(b.id)
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleSet); err != nil {
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	b.logInfo("join bus started", "bus", b.id, "topic", topic)
	return nil
}

// Stop unsubscribes from the set topics. Handlers stay registered.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	if err := b.mqtt.Unsubscribe(b.topics.EISCAllSets(b.id)); err != nil {
		b.logDebug("unsubscribe failed", "bus", b.id, "error", err)
	}
}

// SetBool publishes a digital join value.
func (b *Bus) SetBool(join uint32, value bool) {
	payload := "0"
	if value {
		payload = "1"
	}
	b.publishJoin(mqtt.KindDigital, join, payload)
}

// SetUshort publishes an analog join value.
func (b *Bus) SetUshort(join uint32, value uint16) {
	b.publishJoin(mqtt.KindAnalog, join, strconv.FormatUint(uint64(value), 10))
}

// SetString publishes a serial join value.
func (b *Bus) SetString(join uint32, value string) {
	b.publishJoin(mqtt.KindSerial, join, value)
}

func (b *Bus) publishJoin(kind string, join uint32, payload string) {
	if join == 0 {
		return
	}
	topic := b.topics.EISCJoin(b.id, kind, join)
	if err := b.mqtt.Publish(topic, []byte(payload), b.qos, true); err != nil {
		// Values are re-sent on the next online notice.
		b.logDebug("join publish failed", "topic", topic, "error", err)
	}
}

// OnBool subscribes action to inbound digital values on join.
func (b *Bus) OnBool(join uint32, action func(bool)) display.Subscription {
	key := joinKey{mqtt.KindDigital, join}

	b.mu.Lock()
	id := b.allocID()
	if b.bools[key] == nil {
		b.bools[key] = make(map[uint64]func(bool))
	}
	b.bools[key][id] = action
	b.mu.Unlock()

	return display.OnceSubscription(func() {
		b.mu.Lock()
		delete(b.bools[key], id)
		if len(b.bools[key]) == 0 {
			delete(b.bools, key)
		}
		b.mu.Unlock()
	})
}

// OnUshort subscribes action to inbound analog values on join.
func (b *Bus) OnUshort(join uint32, action func(uint16)) display.Subscription {
	key := joinKey{mqtt.KindAnalog, join}

	b.mu.Lock()
	id := b.allocID()
	if b.ushorts[key] == nil {
		b.ushorts[key] = make(map[uint64]func(uint16))
	}
	b.ushorts[key][id] = action
	b.mu.Unlock()

	return display.OnceSubscription(func() {
		b.mu.Lock()
		delete(b.ushorts[key], id)
		if len(b.ushorts[key]) == 0 {
			delete(b.ushorts, key)
		}
		b.mu.Unlock()
	})
}

// OnOnlineChange subscribes handler to online notices.
func (b *Bus) OnOnlineChange(handler func(online bool)) display.Subscription {
	b.mu.Lock()
	id := b.allocID()
	b.online[id] = handler
	b.mu.Unlock()

	return display.OnceSubscription(func() {
		b.mu.Lock()
		delete(b.online, id)
		b.mu.Unlock()
	})
}

// NotifyOnline delivers an online notice to every subscriber. It is driven
// by the MQTT client's connect and connection-lost callbacks; every
// online=true notice is delivered, repeated or not.
func (b *Bus) NotifyOnline(online bool) {
	b.mu.RLock()
	handlers := make([]func(bool), 0, len(b.online))
	for _, h := range b.online {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.logInfo("join bus online notice", "bus", b.id, "online", online, "subscribers", len(handlers))
	for _, h := range handlers {
		h(online)
	}
}

// handleSet dispatches graylogic/eisc/{id}/set/{kind}/{join}.
func (b *Bus) handleSet(topic string, payload []byte) error {
	kind, join, err := b.parseSetTopic(topic)
	if err != nil {
		return err
	}

	switch kind {
	case mqtt.KindDigital:
		value, err := parseDigital(payload)
		if err != nil {
			return fmt.Errorf("%s: %w", topic, err)
		}
		for _, h := range b.boolHandlers(join) {
			h(value)
		}
	case mqtt.KindAnalog:
		value, err := parseAnalog(payload)
		if err != nil {
			return fmt.Errorf("%s: %w", topic, err)
		}
		for _, h := range b.ushortHandlers(join) {
			h(value)
		}
	default:
		b.logDebug("ignoring set on unsupported join kind", "topic", topic)
	}
	return nil
}

func (b *Bus) parseSetTopic(topic string) (string, uint32, error) {
	prefix := fmt.Sprintf("%s/%s/set/", mqtt.TopicPrefixEISC, b.id)
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return "", 0, fmt.Errorf("unexpected set topic %q", topic)
	}

	kind, joinStr, ok := strings.Cut(rest, "/")
	if !ok {
		return "", 0, fmt.Errorf("unexpected set topic %q", topic)
	}

	join, err := strconv.ParseUint(joinStr, 10, 32)
	if err != nil || join == 0 {
		return "", 0, fmt.Errorf("invalid join in topic %q", topic)
	}
	return kind, uint32(join), nil
}

func (b *Bus) boolHandlers(join uint32) []func(bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.bools[joinKey{mqtt.KindDigital, join}]
	out := make([]func(bool), 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

func (b *Bus) ushortHandlers(join uint32) []func(uint16) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.ushorts[joinKey{mqtt.KindAnalog, join}]
	out := make([]func(uint16), 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

func parseDigital(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w: digital %q", ErrInvalidPayload, payload)
	}
}

func parseAnalog(payload []byte) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(string(payload)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: analog %q", ErrInvalidPayload, payload)
	}
	return uint16(v), nil
}

// allocID must be called with mu held.
func (b *Bus) allocID() uint64 {
	b.nextID++
	return b.nextID
}

// joinMapDocument is the retained JSON published for each join map.
type joinMapDocument struct {
	Device    string         `json:"device"`
	Bus       string         `json:"bus"`
	JoinStart uint32         `json:"join_start"`
	Joins     []display.Join `json:"joins"`
	Timestamp string         `json:"timestamp"`
}

// AddJoinMap records the join map linked for deviceKey, persists it and
// publishes it retained. The in-memory copy is kept even when persisting
// or publishing fails.
func (b *Bus) AddJoinMap(deviceKey string, m *display.JoinMap) error {
	if m == nil {
		return fmt.Errorf("join map for %q is nil", deviceKey)
	}

	b.mu.Lock()
	b.joinMaps[deviceKey] = m
	b.mu.Unlock()

	if b.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := b.store.SaveJoinMap(ctx, b.id, deviceKey, m); err != nil {
			return fmt.Errorf("saving join map %q: %w", deviceKey, err)
		}
	}

	payload, err := json.Marshal(joinMapDocument{
		Device:    deviceKey,
		Bus:       b.id,
		JoinStart: m.JoinStart(),
		Joins:     m.Joins(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding join map %q: %w", deviceKey, err)
	}

	if err := b.mqtt.Publish(b.topics.EISCJoinMap(b.id, deviceKey), payload, b.qos, true); err != nil {
		return fmt.Errorf("publishing join map %q: %w", deviceKey, err)
	}
	return nil
}

// JoinMap returns the join map registered for deviceKey.
func (b *Bus) JoinMap(deviceKey string) (*display.JoinMap, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.joinMaps[deviceKey]
	return m, ok
}

// JoinMapKeys returns the device keys with a registered join map.
func (b *Bus) JoinMapKeys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.joinMaps))
	for k := range b.joinMaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Bus) logDebug(msg string, kv ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, kv...)
	}
}

func (b *Bus) logInfo(msg string, kv ...any) {
	if b.logger != nil {
		b.logger.Info(msg, kv...)
	}
}

package roomview

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
)

const (
	// TypeIdentity is written to the bus Driver join.
	TypeIdentity = "RoomViewConnectedDisplay"

	// DefaultSourceCount is the number of source-select signals when the
	// device config does not set source_count.
	DefaultSourceCount = 10

	defaultQoS = 1
)

// Transport is the MQTT surface the driver uses. *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a driver.
type Options struct {
	// IPID is the display's IP ID as configured ("0x05").
	IPID string

	// Name and Description are reported through Signals.
	Name        string
	Description string

	// SourceCount is the number of source-select signals. Zero means 10.
	SourceCount int

	MQTT   Transport
	QoS    byte
	Logger Logger

	// NewSessionID generates registration session IDs. Defaults to uuid.NewString.
	NewSessionID func() string
}

// Driver is a display.Driver backed by the RoomView gateway.
//
// Thread Safety: All methods are safe for concurrent use. Events and online
// notices are delivered one at a time, in arrival order.
type Driver struct {
	rawIPID     string
	ipID        string
	name        string
	description string
	sourceCount int
	mqtt        Transport
	qos         byte
	logger      Logger
	newSession  func() string
	topics      mqtt.Topics

	// regMu serialises Register and Unregister.
	regMu sync.Mutex

	mu         sync.RWMutex
	cache      cache
	registered bool
	key        string
	session    string

	handlerMu      sync.RWMutex
	nextID         uint64
	eventHandlers  map[uint64]func(display.Event)
	onlineHandlers map[uint64]func(bool)

	// deliverMu serialises handler invocation.
	deliverMu sync.Mutex
}

var _ display.Driver = (*Driver)(nil)

// New creates a driver. An invalid IP ID is reported by Register, not here.
func New(opts Options) (*Driver, error) {
	if opts.MQTT == nil {
		return nil, ErrMissingTransport
	}

	ipID, _ := ParseIPID(opts.IPID) //nolint:errcheck // Register reports RegistrationInvalidID

	count := opts.SourceCount
	if count <= 0 {
		count = DefaultSourceCount
	}
	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}
	newSession := opts.NewSessionID
	if newSession == nil {
		newSession = uuid.NewString
	}

	return &Driver{
		rawIPID:        opts.IPID,
		ipID:           ipID,
		name:           opts.Name,
		description:    opts.Description,
		sourceCount:    count,
		mqtt:           opts.MQTT,
		qos:            qos,
		logger:         opts.Logger,
		newSession:     newSession,
		cache:          newCache(),
		eventHandlers:  make(map[uint64]func(display.Event)),
		onlineHandlers: make(map[uint64]func(bool)),
	}, nil
}

// IPID returns the normalised IP ID, or "" when the configured one is invalid.
func (d *Driver) IPID() string {
	return d.ipID
}

// Session returns the current registration session ID.
func (d *Driver) Session() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

type registrationRecord struct {
	Device    string `json:"device"`
	IPID      string `json:"ip_id"`
	Session   string `json:"session"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Register subscribes to the display's gateway topics and publishes a
// retained registration record with a new session ID.
func (d *Driver) Register(key string) display.RegistrationResult {
	if d.ipID == "" {
		d.logWarn("invalid ip id", "device", key, "ip_id", d.rawIPID)
		return display.RegistrationInvalidID
	}

	d.regMu.Lock()
	defer d.regMu.Unlock()

	d.mu.RLock()
	registered := d.registered
	d.mu.RUnlock()
	if registered {
		return display.RegistrationAlreadyRegistered
	}

	feedbackTopic := d.topics.RoomViewAllFeedback(d.ipID)
	if err := d.mqtt.Subscribe(feedbackTopic, d.qos, d.handleFeedback); err != nil {
		d.logWarn("feedback subscribe failed", "device", key, "error", err)
		return display.RegistrationTransportError
	}

	onlineTopic := d.topics.RoomViewOnline(d.ipID)
	if err := d.mqtt.Subscribe(onlineTopic, d.qos, d.handleOnline); err != nil {
		d.logWarn("online subscribe failed", "device", key, "error", err)
		d.unsubscribeAll()
		return display.RegistrationTransportError
	}

	session := d.newSession()
	if err := d.publishRegistration(key, session, "registered"); err != nil {
		d.logWarn("registration publish failed", "device", key, "error", err)
		d.unsubscribeAll()
		return display.RegistrationTransportError
	}

	d.mu.Lock()
	d.registered = true
	d.key = key
	d.session = session
	d.mu.Unlock()

	d.logInfo("registered with roomview gateway", "device", key, "ip_id", d.ipID, "session", session)
	return display.RegistrationSuccess
}

// Unregister unsubscribes and marks the registration record unregistered.
func (d *Driver) Unregister() display.RegistrationResult {
	d.regMu.Lock()
	defer d.regMu.Unlock()

	d.mu.Lock()
	if !d.registered {
		d.mu.Unlock()
		return display.RegistrationNotRegistered
	}
	key, session := d.key, d.session
	d.registered = false
	d.session = ""
	d.mu.Unlock()

	d.unsubscribeAll()

	if err := d.publishRegistration(key, session, "unregistered"); err != nil {
		d.logWarn("unregistration publish failed", "device", key, "error", err)
		return display.RegistrationTransportError
	}
	return display.RegistrationSuccess
}

func (d *Driver) unsubscribeAll() {
	for _, topic := range []string{d.topics.RoomViewAllFeedback(d.ipID), d.topics.RoomViewOnline(d.ipID)} {
		if err := d.mqtt.Unsubscribe(topic); err != nil {
			d.logDebug("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (d *Driver) publishRegistration(key, session, status string) error {
	payload, err := json.Marshal(registrationRecord{
		Device:    key,
		IPID:      d.ipID,
		Session:   session,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding registration: %w", err)
	}
	return d.mqtt.Publish(d.topics.RoomViewRegistration(d.ipID), payload, d.qos, true)
}

// handleFeedback updates the cache and raises at most one event.
func (d *Driver) handleFeedback(topic string, payload []byte) error {
	signal, index, err := d.parseFeedbackTopic(topic)
	if err != nil {
		return err
	}

	d.mu.Lock()
	ev, raise, err := d.cache.apply(signal, index, string(payload))
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	if raise {
		d.emit(ev)
	}
	return nil
}

func (d *Driver) parseFeedbackTopic(topic string) (string, int, error) {
	prefix := d.topics.RoomViewFeedback(d.ipID, "")
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok || rest == "" {
		return "", 0, fmt.Errorf("unexpected feedback topic %q", topic)
	}

	signal, indexStr, indexed := strings.Cut(rest, "/")
	if !indexed {
		return signal, 0, nil
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 1 || index > d.sourceCount {
		return "", 0, fmt.Errorf("invalid index in topic %q", topic)
	}
	return signal, index, nil
}

// handleOnline forwards the gateway's connection notice.
func (d *Driver) handleOnline(topic string, payload []byte) error {
	online, err := parseBool(string(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	d.mu.Lock()
	d.cache.sig.Online = online
	d.mu.Unlock()

	d.handlerMu.RLock()
	handlers := make([]func(bool), 0, len(d.onlineHandlers))
	for _, h := range d.onlineHandlers {
		handlers = append(handlers, h)
	}
	d.handlerMu.RUnlock()

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	for _, h := range handlers {
		h(online)
	}
	return nil
}

func (d *Driver) emit(ev display.Event) {
	d.handlerMu.RLock()
	handlers := make([]func(display.Event), 0, len(d.eventHandlers))
	for _, h := range d.eventHandlers {
		handlers = append(handlers, h)
	}
	d.handlerMu.RUnlock()

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// OnEvent subscribes to raw feedback events.
func (d *Driver) OnEvent(handler func(display.Event)) display.Subscription {
	d.handlerMu.Lock()
	d.nextID++
	id := d.nextID
	d.eventHandlers[id] = handler
	d.handlerMu.Unlock()

	return display.OnceSubscription(func() {
		d.handlerMu.Lock()
		delete(d.eventHandlers, id)
		d.handlerMu.Unlock()
	})
}

// OnOnlineChange subscribes to the gateway connection notice.
func (d *Driver) OnOnlineChange(handler func(online bool)) display.Subscription {
	d.handlerMu.Lock()
	d.nextID++
	id := d.nextID
	d.onlineHandlers[id] = handler
	d.handlerMu.Unlock()

	return display.OnceSubscription(func() {
		d.handlerMu.Lock()
		delete(d.onlineHandlers, id)
		d.handlerMu.Unlock()
	})
}

// Signals returns the cached values.
func (d *Driver) Signals() display.Signals {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := d.cache.sig
	s.Name = d.name
	s.Description = d.description
	s.ID = d.ipID
	return s
}

// SourceCount returns the configured number of source-select signals.
func (d *Driver) SourceCount() int {
	return d.sourceCount
}

// SourceSelected reports the cached source-select feedback at index.
func (d *Driver) SourceSelected(index int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache.sourceSelect[index]
}

// SourceName returns the cached source name at index.
func (d *Driver) SourceName(index int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache.sourceName[index]
}

// SelectSource asks the display to switch to source index.
func (d *Driver) SelectSource(index int) {
	if index < 1 || index > d.sourceCount {
		d.logWarn("source index out of range", "ip_id", d.ipID, "index", index)
		return
	}
	d.command(CommandSelectSource, strconv.Itoa(index))
}

// PowerOn sends the power-on command.
func (d *Driver) PowerOn() { d.command(CommandPowerOn, "1") }

// PowerOff sends the power-off command.
func (d *Driver) PowerOff() { d.command(CommandPowerOff, "1") }

// MuteOn sends the mute-on command.
func (d *Driver) MuteOn() { d.command(CommandMuteOn, "1") }

// MuteOff sends the mute-off command.
func (d *Driver) MuteOff() { d.command(CommandMuteOff, "1") }

// MuteToggle sends the mute-toggle command.
func (d *Driver) MuteToggle() { d.command(CommandMuteToggle, "1") }

// VolumeUp sends one volume step up.
func (d *Driver) VolumeUp() { d.command(CommandVolumeUp, "1") }

// VolumeDown sends one volume step down.
func (d *Driver) VolumeDown() { d.command(CommandVolumeDown, "1") }

// SetVolume sets the absolute volume level.
func (d *Driver) SetVolume(level uint16) {
	d.command(CommandSetVolume, strconv.FormatUint(uint64(level), 10))
}

// TypeIdentity implements display.Driver.
func (d *Driver) TypeIdentity() string {
	return TypeIdentity
}

// command publishes a non-retained command. Dropped when unregistered.
func (d *Driver) command(name, payload string) {
	d.mu.RLock()
	registered := d.registered
	d.mu.RUnlock()

	if !registered {
		d.logDebug("dropping command while unregistered", "ip_id", d.ipID, "command", name)
		return
	}

	topic := d.topics.RoomViewCommand(d.ipID, name)
	if err := d.mqtt.Publish(topic, []byte(payload), d.qos, false); err != nil {
		d.logWarn("command publish failed", "topic", topic, "error", err)
	}
}

func (d *Driver) logDebug(msg string, kv ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, kv...)
	}
}

func (d *Driver) logInfo(msg string, kv ...any) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *Driver) logWarn(msg string, kv ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, kv...)
	}
}

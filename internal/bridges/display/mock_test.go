package display

import (
	"sync"
	"time"
)

// mockDriver implements Driver for testing.
type mockDriver struct {
	mu sync.Mutex

	registerResult   RegistrationResult
	unregisterResult RegistrationResult
	registerCalls    int
	unregisterCalls  int

	signals     Signals
	selected    map[int]bool
	sourceNames map[int]string
	sourceCount int
	selectCalls []int
	commands    []string

	eventHandlers  map[int]func(Event)
	onlineHandlers map[int]func(bool)
	nextHandler    int
}

func newMockDriver(sourceCount int) *mockDriver {
	return &mockDriver{
		registerResult:   RegistrationSuccess,
		unregisterResult: RegistrationSuccess,
		selected:         make(map[int]bool),
		sourceNames:      make(map[int]string),
		sourceCount:      sourceCount,
		eventHandlers:    make(map[int]func(Event)),
		onlineHandlers:   make(map[int]func(bool)),
	}
}

func (m *mockDriver) Register(string) RegistrationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls++
	return m.registerResult
}

func (m *mockDriver) Unregister() RegistrationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterCalls++
	return m.unregisterResult
}

func (m *mockDriver) OnEvent(handler func(Event)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHandler++
	id := m.nextHandler
	m.eventHandlers[id] = handler
	return OnceSubscription(func() {
		m.mu.Lock()
		delete(m.eventHandlers, id)
		m.mu.Unlock()
	})
}

func (m *mockDriver) OnOnlineChange(handler func(bool)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHandler++
	id := m.nextHandler
	m.onlineHandlers[id] = handler
	return OnceSubscription(func() {
		m.mu.Lock()
		delete(m.onlineHandlers, id)
		m.mu.Unlock()
	})
}

func (m *mockDriver) Signals() Signals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals
}

func (m *mockDriver) SourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sourceCount
}

func (m *mockDriver) SourceSelected(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected[index]
}

func (m *mockDriver) SourceName(index int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sourceNames[index]
}

func (m *mockDriver) SelectSource(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectCalls = append(m.selectCalls, index)
}

func (m *mockDriver) record(cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
}

func (m *mockDriver) PowerOn()    { m.record("power_on") }
func (m *mockDriver) PowerOff()   { m.record("power_off") }
func (m *mockDriver) MuteOn()     { m.record("mute_on") }
func (m *mockDriver) MuteOff()    { m.record("mute_off") }
func (m *mockDriver) MuteToggle() { m.record("mute_toggle") }
func (m *mockDriver) VolumeUp()   { m.record("volume_up") }
func (m *mockDriver) VolumeDown() { m.record("volume_down") }

func (m *mockDriver) SetVolume(level uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals.Volume = level
	m.commands = append(m.commands, "set_volume")
}

func (m *mockDriver) TypeIdentity() string { return "mock.RoomViewDisplay" }

func (m *mockDriver) setSelected(index int, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected[index] = v
}

func (m *mockDriver) setSignals(fn func(*Signals)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.signals)
}

func (m *mockDriver) getCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}

func (m *mockDriver) getSelectCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.selectCalls))
	copy(out, m.selectCalls)
	return out
}

func (m *mockDriver) handlerCounts() (events, online int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.eventHandlers), len(m.onlineHandlers)
}

// emit delivers an event to every subscriber.
func (m *mockDriver) emit(ev Event) {
	m.mu.Lock()
	handlers := make([]func(Event), 0, len(m.eventHandlers))
	for _, h := range m.eventHandlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// emitOnline delivers an online notice to every subscriber.
func (m *mockDriver) emitOnline(online bool) {
	m.mu.Lock()
	handlers := make([]func(bool), 0, len(m.onlineHandlers))
	for _, h := range m.onlineHandlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(online)
	}
}

// busWrite records one bus write.
type busWrite struct {
	Kind  string
	Join  uint32
	Value any
}

// mockBus implements Bus for testing.
type mockBus struct {
	mu     sync.Mutex
	writes []busWrite

	boolActions   map[uint32][]func(bool)
	ushortActions map[uint32][]func(uint16)
	onlineActions map[int]func(bool)
	nextOnline    int
}

func newMockBus() *mockBus {
	return &mockBus{
		boolActions:   make(map[uint32][]func(bool)),
		ushortActions: make(map[uint32][]func(uint16)),
		onlineActions: make(map[int]func(bool)),
	}
}

func (b *mockBus) ID() string { return "mock-bus" }

func (b *mockBus) SetBool(join uint32, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, busWrite{Kind: "bool", Join: join, Value: v})
}

func (b *mockBus) SetUshort(join uint32, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, busWrite{Kind: "ushort", Join: join, Value: v})
}

func (b *mockBus) SetString(join uint32, v string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, busWrite{Kind: "string", Join: join, Value: v})
}

func (b *mockBus) OnBool(join uint32, action func(bool)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boolActions[join] = append(b.boolActions[join], action)
	idx := len(b.boolActions[join]) - 1
	return OnceSubscription(func() {
		b.mu.Lock()
		b.boolActions[join][idx] = nil
		b.mu.Unlock()
	})
}

func (b *mockBus) OnUshort(join uint32, action func(uint16)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ushortActions[join] = append(b.ushortActions[join], action)
	idx := len(b.ushortActions[join]) - 1
	return OnceSubscription(func() {
		b.mu.Lock()
		b.ushortActions[join][idx] = nil
		b.mu.Unlock()
	})
}

func (b *mockBus) OnOnlineChange(handler func(bool)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextOnline++
	id := b.nextOnline
	b.onlineActions[id] = handler
	return OnceSubscription(func() {
		b.mu.Lock()
		delete(b.onlineActions, id)
		b.mu.Unlock()
	})
}

func (b *mockBus) getWrites() []busWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]busWrite, len(b.writes))
	copy(out, b.writes)
	return out
}

func (b *mockBus) clearWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = nil
}

// writesTo returns the writes of kind to join, in order.
func (b *mockBus) writesTo(kind string, join uint32) []any {
	var out []any
	for _, w := range b.getWrites() {
		if w.Kind == kind && w.Join == join {
			out = append(out, w.Value)
		}
	}
	return out
}

func (b *mockBus) pressBool(join uint32, v bool) {
	b.mu.Lock()
	actions := append([]func(bool){}, b.boolActions[join]...)
	b.mu.Unlock()
	for _, a := range actions {
		if a != nil {
			a(v)
		}
	}
}

func (b *mockBus) sendUshort(join uint32, v uint16) {
	b.mu.Lock()
	actions := append([]func(uint16){}, b.ushortActions[join]...)
	b.mu.Unlock()
	for _, a := range actions {
		if a != nil {
			a(v)
		}
	}
}

func (b *mockBus) setOnline(online bool) {
	b.mu.Lock()
	handlers := make([]func(bool), 0, len(b.onlineActions))
	for _, h := range b.onlineActions {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(online)
	}
}

func (b *mockBus) onlineSubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.onlineActions)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

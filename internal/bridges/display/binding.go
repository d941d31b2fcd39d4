package display

import (
	"fmt"
	"sync"
)

// Bus is the join-addressed signal bus a device is linked to.
type Bus interface {
	// ID identifies the bus instance in logs.
	ID() string

	SetBool(join uint32, value bool)
	SetUshort(join uint32, value uint16)
	SetString(join uint32, value string)

	// OnBool subscribes to inbound digital values on join.
	OnBool(join uint32, action func(bool)) Subscription

	// OnUshort subscribes to inbound analog values on join.
	OnUshort(join uint32, action func(uint16)) Subscription

	// OnOnlineChange subscribes to the bus transport's online notice.
	OnOnlineChange(handler func(online bool)) Subscription
}

// JoinMapRegistry collects join maps for supervisor-side introspection.
type JoinMapRegistry interface {
	AddJoinMap(deviceKey string, m *JoinMap) error
}

// OverrideSource resolves custom join tables by join-map key.
type OverrideSource interface {
	JoinOverrides(joinMapKey string) (map[string]JoinOverride, bool)
}

// LinkOptions holds optional collaborators for LinkToBus.
type LinkOptions struct {
	Registry  JoinMapRegistry
	Overrides OverrideSource
}

// Binding is the link between one Device and one Bus.
type Binding struct {
	device  *Device
	bus     Bus
	joinMap *JoinMap

	mu   sync.Mutex
	subs []Subscription
	done bool
}

// LinkToBus links the device's feedbacks and controls to bus joins
// starting at joinStart. Any previous binding of the device is unlinked.
//
// After linking, the driver identity is written and every feedback is
// pushed; the same happens on every online notice from the bus.
func (d *Device) LinkToBus(bus Bus, joinStart uint32, joinMapKey string, opts LinkOptions) (*Binding, error) {
	if bus == nil {
		return nil, ErrNilBus
	}

	joinMap := NewJoinMap(joinStart)

	if opts.Overrides != nil && joinMapKey != "" {
		if overrides, ok := opts.Overrides.JoinOverrides(joinMapKey); ok {
			if err := joinMap.ApplyOverrides(overrides); err != nil {
				return nil, fmt.Errorf("applying join overrides %q: %w", joinMapKey, err)
			}
		}
	}
	joinMap.Seal()

	if opts.Registry != nil {
		if err := opts.Registry.AddJoinMap(d.key, joinMap); err != nil {
			d.logger.Warn("failed to register join map",
				"device", d.key,
				"error", err,
			)
		}
	}

	d.mu.Lock()
	prev := d.binding
	d.mu.Unlock()
	if prev != nil {
		prev.Unlink()
	}

	b := &Binding{
		device:  d,
		bus:     bus,
		joinMap: joinMap,
	}

	b.linkFeedbacks()
	b.linkCommands()

	d.mu.Lock()
	d.binding = b
	d.mu.Unlock()

	d.logger.Info("display linked to bus",
		"device", d.key,
		"bus", bus.ID(),
		"join_start", joinMap.JoinStart(),
	)

	b.Refresh()

	b.add(bus.OnOnlineChange(func(online bool) {
		if !online {
			return
		}
		d.logger.Debug("bus online, republishing display state",
			"device", d.key,
			"bus", bus.ID(),
		)
		b.Refresh()
	}))

	return b, nil
}

// Binding returns the current bus binding, or nil if unlinked.
func (d *Device) Binding() *Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding
}

// JoinMap returns the binding's join map.
func (b *Binding) JoinMap() *JoinMap {
	return b.joinMap
}

// Bus returns the linked bus.
func (b *Binding) Bus() Bus {
	return b.bus
}

// Refresh writes the identity strings and re-fires every feedback.
func (b *Binding) Refresh() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done {
		return
	}

	b.bus.SetString(b.joinMap.Number(JoinDriver), b.device.driver.TypeIdentity())
	b.bus.SetString(b.joinMap.Number(JoinName), b.device.name)
	b.device.fireAll()
}

// Unlink cancels every bus subscription and detaches the feedbacks.
// Safe to call more than once.
func (b *Binding) Unlink() {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}

	d := b.device
	d.mu.Lock()
	if d.binding == b {
		d.binding = nil
	}
	d.mu.Unlock()
}

func (b *Binding) add(s Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

// linkFeedbacks binds device → bus.
func (b *Binding) linkFeedbacks() {
	d, bus, m := b.device, b.bus, b.joinMap

	b.add(d.status.Link(func(v int) {
		bus.SetUshort(m.Number(JoinStatus), uint16(v))
		status := CommStatus(v)
		bus.SetBool(m.Number(JoinIsOnline), status == StatusConnected || status == StatusWarning)
	}))

	b.add(d.volume.Link(func(v int) {
		bus.SetUshort(m.Number(JoinVolumeLevel), uint16(v))
	}))

	b.add(d.mute.Link(func(v bool) {
		bus.SetBool(m.Number(JoinMuteOn), v)
		bus.SetBool(m.Number(JoinMuteOff), !v)
	}))

	b.add(d.power.Link(func(v bool) {
		bus.SetBool(m.Number(JoinPowerOn), v)
		bus.SetBool(m.Number(JoinPowerOff), !v)
	}))

	b.add(d.coolingDown.Link(func(v bool) {
		bus.SetBool(m.Number(JoinIsCoolingDown), v)
	}))

	b.add(d.warmingUp.Link(func(v bool) {
		bus.SetBool(m.Number(JoinIsWarmingUp), v)
	}))

	b.add(d.currentInput.Link(func(v string) {
		bus.SetString(m.Number(JoinCurrentInput), v)

		current := 0
		if port, ok := d.ports.ByKey(v); ok {
			current = port.Index
		}
		bus.SetUshort(m.Number(JoinInputSelect), uint16(current))

		offset, _ := m.Join(JoinInputSelectOffset)
		for i := 1; i <= b.inputSpan(offset); i++ {
			bus.SetBool(offset.JoinNumber+uint32(i)-1, i == current)
		}
	}))
}

// linkCommands binds bus → device. Digital commands act on the rising
// edge.
func (b *Binding) linkCommands() {
	d, bus, m := b.device, b.bus, b.joinMap

	press := func(name string, action func()) {
		b.add(bus.OnBool(m.Number(name), func(v bool) {
			if v {
				action()
			}
		}))
	}

	press(JoinPowerOn, d.PowerOn)
	press(JoinPowerOff, d.PowerOff)
	press(JoinPowerToggle, d.PowerToggle)
	press(JoinMuteOn, d.MuteOn)
	press(JoinMuteOff, d.MuteOff)
	press(JoinMuteToggle, d.MuteToggle)

	b.add(bus.OnBool(m.Number(JoinVolumeUp), d.VolumeUp))
	b.add(bus.OnBool(m.Number(JoinVolumeDown), d.VolumeDown))

	b.add(bus.OnUshort(m.Number(JoinVolumeLevel), d.SetVolume))

	b.add(bus.OnUshort(m.Number(JoinInputSelect), func(v uint16) {
		if v == 0 {
			return
		}
		d.SelectInput(int(v))
	}))

	offset, _ := m.Join(JoinInputSelectOffset)
	for i := 1; i <= b.inputSpan(offset); i++ {
		index := i
		b.add(bus.OnBool(offset.JoinNumber+uint32(index)-1, func(v bool) {
			if v {
				d.SelectInput(index)
			}
		}))
	}
}

// inputSpan is the number of input-select joins actually backed by a port.
func (b *Binding) inputSpan(offset Join) int {
	n := b.device.ports.Len()
	if int(offset.JoinSpan) < n {
		n = int(offset.JoinSpan)
	}
	return n
}

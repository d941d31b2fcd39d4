package display

// eventHandler reacts to one raw driver event.
type eventHandler func(Event)

// newEventHandlers builds the dispatch table mapping each driver event to
// its feedback fire. Every EventID has an entry; ignored events map to
// ignoreEvent so the table stays exhaustive.
func (d *Device) newEventHandlers() map[EventID]eventHandler {
	return map[EventID]eventHandler{
		EventOnline:         func(Event) { d.fireAll() },
		EventPowerOn:        func(Event) { d.power.FireUpdate() },
		EventPowerOff:       func(Event) { d.power.FireUpdate() },
		EventCoolingDown:    func(Event) { d.coolingDown.FireUpdate() },
		EventWarmingUp:      func(Event) { d.warmingUp.FireUpdate() },
		EventMuteOn:         func(Event) { d.mute.FireUpdate() },
		EventVolume:         func(Event) { d.volume.FireUpdate() },
		EventSourceSelect:   d.handleSourceSelect,
		EventSourceNameText: ignoreEvent,
		EventLampHours:      ignoreEvent,
		EventLampHoursText:  ignoreEvent,
	}
}

func ignoreEvent(Event) {}

// handleEvent is the driver event subscriber. Every delivered event counts
// as device activity.
func (d *Device) handleEvent(ev Event) {
	d.monitor.Touch()

	handler, ok := d.handlers[ev.ID]
	if !ok {
		d.logger.Debug("unhandled driver event",
			"device", d.key,
			"event", int(ev.ID),
		)
		return
	}

	handler(ev)
}

// handleOnline is the driver online/offline subscriber.
func (d *Device) handleOnline(online bool) {
	d.logger.Debug("driver online status changed",
		"device", d.key,
		"online", online,
	)

	if online {
		d.monitor.Touch()
	}
	d.fireAll()
}

func (d *Device) handleSourceSelect(ev Event) {
	if !d.driver.SourceSelected(ev.Index) {
		return
	}

	port, ok := d.ports.ByIndex(ev.Index)
	if !ok {
		d.logger.Debug("source select at unbound index",
			"device", d.key,
			"index", ev.Index,
		)
		return
	}

	d.selectMu.Lock()
	d.lastSelected = ev.Index
	d.selectMu.Unlock()

	d.currentInput.FireUpdate()
	d.emitRouteChange(RouteChange{Port: port, SignalType: SignalAudioVideo})
}

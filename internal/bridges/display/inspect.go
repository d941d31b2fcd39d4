package display

import "strings"

// Info is a snapshot of driver identification.
type Info struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	TypeIdentity  string `json:"type_identity"`
	DeviceID      string `json:"device_id"`
	Firmware      string `json:"firmware"`
	ProjectorName string `json:"projector_name"`
	Description   string `json:"description"`
	StatusMessage string `json:"status_message"`
	LampHours     uint16 `json:"lamp_hours"`
	LampHoursText string `json:"lamp_hours_text"`
}

// State is a snapshot of display state.
type State struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DriverName   string `json:"driver_name"`
	DriverID     string `json:"driver_id"`
	Active       bool   `json:"active"`
	Online       bool   `json:"online"`
	CommStatus   string `json:"comm_status"`
	StatusCode   int    `json:"status_code"`
	Power        bool   `json:"power"`
	CoolingDown  bool   `json:"cooling_down"`
	WarmingUp    bool   `json:"warming_up"`
	Mute         bool   `json:"mute"`
	Volume       uint16 `json:"volume"`
	LampHours    uint16 `json:"lamp_hours"`
	CurrentInput string `json:"current_input"`
}

// InputEntry is one named driver source.
type InputEntry struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// Inputs lists the named driver sources.
type Inputs struct {
	CurrentSource string       `json:"current_source"`
	Inputs        []InputEntry `json:"inputs"`
}

// RoutingPortEntry is one routing port with its driver source name.
type RoutingPortEntry struct {
	Key            string         `json:"key"`
	Index          int            `json:"index"`
	SignalType     string         `json:"signal_type"`
	ConnectionType ConnectionType `json:"connection_type"`
	SourceName     string         `json:"source_name"`
}

// Info returns driver identification.
func (d *Device) Info() Info {
	s := d.driver.Signals()
	return Info{
		Key:           d.key,
		Name:          d.name,
		TypeIdentity:  d.driver.TypeIdentity(),
		DeviceID:      s.DeviceID,
		Firmware:      s.Firmware,
		ProjectorName: s.ProjectorName,
		Description:   s.Description,
		StatusMessage: s.StatusMessage,
		LampHours:     s.LampHours,
		LampHoursText: s.LampHoursText,
	}
}

// State returns the current display state.
func (d *Device) State() State {
	s := d.driver.Signals()
	status := d.monitor.Status()
	return State{
		Key:          d.key,
		Name:         d.name,
		DriverName:   s.Name,
		DriverID:     s.ID,
		Active:       d.IsActive(),
		Online:       s.Online,
		CommStatus:   status.String(),
		StatusCode:   int(status),
		Power:        s.Power,
		CoolingDown:  s.CoolingDown,
		WarmingUp:    s.WarmingUp,
		Mute:         s.Mute,
		Volume:       s.Volume,
		LampHours:    s.LampHours,
		CurrentInput: d.currentInputKey(),
	}
}

// Inputs lists named sources, stopping at the first blank source name.
func (d *Device) Inputs() Inputs {
	out := Inputs{
		CurrentSource: d.driver.Signals().CurrentSource,
		Inputs:        []InputEntry{},
	}

	for i := 1; i <= d.driver.SourceCount(); i++ {
		name := d.driver.SourceName(i)
		if strings.TrimSpace(name) == "" {
			break
		}
		out.Inputs = append(out.Inputs, InputEntry{
			Index:    i,
			Name:     name,
			Selected: d.driver.SourceSelected(i),
		})
	}

	return out
}

// RoutingPorts lists routing ports with their source names.
func (d *Device) RoutingPorts() []RoutingPortEntry {
	ports := d.ports.Ports()
	out := make([]RoutingPortEntry, 0, len(ports))
	for _, p := range ports {
		out = append(out, RoutingPortEntry{
			Key:            p.Key,
			Index:          p.Index,
			SignalType:     p.SignalType.String(),
			ConnectionType: p.ConnectionType,
			SourceName:     d.driver.SourceName(p.Index),
		})
	}
	return out
}

package display

import (
	"fmt"
	"sort"
	"sync"
)

// JoinType is the signal class of a join.
type JoinType string

// Join types.
const (
	JoinDigital JoinType = "digital"
	JoinAnalog  JoinType = "analog"
	JoinSerial  JoinType = "serial"
)

// JoinCapability is the data direction of a join.
type JoinCapability string

// Join capabilities.
const (
	ToBus     JoinCapability = "to_bus"
	FromBus   JoinCapability = "from_bus"
	ToFromBus JoinCapability = "to_from_bus"
)

// Join names.
const (
	JoinPowerOff          = "PowerOff"
	JoinPowerOn           = "PowerOn"
	JoinPowerToggle       = "PowerToggle"
	JoinIsCoolingDown     = "IsCoolingDown"
	JoinIsWarmingUp       = "IsWarmingUp"
	JoinVolumeUp          = "VolumeUp"
	JoinVolumeDown        = "VolumeDown"
	JoinMuteToggle        = "MuteToggle"
	JoinMuteOn            = "MuteOn"
	JoinMuteOff           = "MuteOff"
	JoinInputSelectOffset = "InputSelectOffset"
	JoinIsOnline          = "IsOnline"
	JoinStatus            = "Status"
	JoinVolumeLevel       = "VolumeLevel"
	JoinInputSelect       = "InputSelect"
	JoinDriver            = "Driver"
	JoinCurrentInput      = "CurrentInput"
	JoinName              = "Name"
)

// JoinData is the address of a join. JoinNumber is absolute.
type JoinData struct {
	JoinNumber uint32 `json:"join_number"`
	JoinSpan   uint32 `json:"join_span"`
}

// JoinMetadata describes a join.
type JoinMetadata struct {
	Description string         `json:"description"`
	Type        JoinType       `json:"type"`
	Capability  JoinCapability `json:"capability"`
}

// Join is one named entry of a join map.
type Join struct {
	Name string `json:"name"`
	JoinData
	Metadata JoinMetadata `json:"metadata"`
}

// JoinOverride replaces a join's address. JoinNumber is 1-based relative
// to the map's join start; a zero JoinSpan keeps the default span.
type JoinOverride struct {
	JoinNumber uint32 `yaml:"join_number" json:"join_number"`
	JoinSpan   uint32 `yaml:"join_span" json:"join_span,omitempty"`
}

type joinDefault struct {
	name     string
	relative uint32
	span     uint32
	meta     JoinMetadata
}

var defaultJoins = []joinDefault{
	{JoinPowerOff, 1, 1, JoinMetadata{"Power Off", JoinDigital, ToFromBus}},
	{JoinPowerOn, 2, 1, JoinMetadata{"Power On", JoinDigital, ToFromBus}},
	{JoinPowerToggle, 3, 1, JoinMetadata{"Power Toggle", JoinDigital, FromBus}},
	{JoinIsCoolingDown, 4, 1, JoinMetadata{"Is Cooling Down", JoinDigital, ToBus}},
	{JoinIsWarmingUp, 5, 1, JoinMetadata{"Is Warming Up", JoinDigital, ToBus}},
	{JoinVolumeUp, 6, 1, JoinMetadata{"Volume Up", JoinDigital, FromBus}},
	{JoinVolumeDown, 7, 1, JoinMetadata{"Volume Down", JoinDigital, FromBus}},
	{JoinMuteToggle, 8, 1, JoinMetadata{"Mute Toggle", JoinDigital, FromBus}},
	{JoinMuteOn, 9, 1, JoinMetadata{"Mute On", JoinDigital, ToFromBus}},
	{JoinMuteOff, 10, 1, JoinMetadata{"Mute Off", JoinDigital, ToFromBus}},
	{JoinInputSelectOffset, 11, 10, JoinMetadata{"Input Select", JoinDigital, ToFromBus}},
	{JoinIsOnline, 50, 1, JoinMetadata{"Is Online", JoinDigital, ToBus}},
	{JoinStatus, 1, 1, JoinMetadata{"Communication Status", JoinAnalog, ToBus}},
	{JoinVolumeLevel, 2, 1, JoinMetadata{"Volume Level", JoinAnalog, ToFromBus}},
	{JoinInputSelect, 3, 1, JoinMetadata{"Input Select", JoinAnalog, ToFromBus}},
	{JoinDriver, 1, 1, JoinMetadata{"Driver Type", JoinSerial, ToBus}},
	{JoinCurrentInput, 2, 1, JoinMetadata{"Current Input", JoinSerial, ToBus}},
	{JoinName, 3, 1, JoinMetadata{"Device Name", JoinSerial, ToBus}},
}

// JoinMap assigns each control point of a display to a bus join.
// Overrides may be applied until the map is sealed by LinkToBus.
type JoinMap struct {
	joinStart uint32

	mu     sync.RWMutex
	joins  map[string]Join
	sealed bool
}

// NewJoinMap builds the default join map starting at joinStart.
// A joinStart of 0 is treated as 1.
func NewJoinMap(joinStart uint32) *JoinMap {
	if joinStart == 0 {
		joinStart = 1
	}

	m := &JoinMap{
		joinStart: joinStart,
		joins:     make(map[string]Join, len(defaultJoins)),
	}

	for _, def := range defaultJoins {
		m.joins[def.name] = Join{
			Name: def.name,
			JoinData: JoinData{
				JoinNumber: joinStart + def.relative - 1,
				JoinSpan:   def.span,
			},
			Metadata: def.meta,
		}
	}

	return m
}

// JoinStart returns the base join number.
func (m *JoinMap) JoinStart() uint32 {
	return m.joinStart
}

// Join returns the named join.
func (m *JoinMap) Join(name string) (Join, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.joins[name]
	return j, ok
}

// Number returns the absolute join number for name, or 0 if unknown.
func (m *JoinMap) Number(name string) uint32 {
	j, _ := m.Join(name)
	return j.JoinNumber
}

// Joins returns every join ordered by type then join number.
func (m *JoinMap) Joins() []Join {
	m.mu.RLock()
	out := make([]Join, 0, len(m.joins))
	for _, j := range m.joins {
		out = append(out, j)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].Metadata.Type != out[b].Metadata.Type {
			return joinTypeOrder(out[a].Metadata.Type) < joinTypeOrder(out[b].Metadata.Type)
		}
		if out[a].JoinNumber != out[b].JoinNumber {
			return out[a].JoinNumber < out[b].JoinNumber
		}
		return out[a].Name < out[b].Name
	})

	return out
}

func joinTypeOrder(t JoinType) int {
	switch t {
	case JoinDigital:
		return 0
	case JoinAnalog:
		return 1
	default:
		return 2
	}
}

// ApplyOverrides replaces the addresses of the named joins. Either every
// override is applied or none is.
func (m *JoinMap) ApplyOverrides(overrides map[string]JoinOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrJoinMapSealed
	}

	for name, o := range overrides {
		if _, ok := m.joins[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownJoin, name)
		}
		if o.JoinNumber == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidJoin, name)
		}
	}

	for name, o := range overrides {
		j := m.joins[name]
		j.JoinNumber = m.joinStart + o.JoinNumber - 1
		if o.JoinSpan > 0 {
			j.JoinSpan = o.JoinSpan
		}
		m.joins[name] = j
	}

	return nil
}

// Seal makes the map immutable.
func (m *JoinMap) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Sealed reports whether the map is immutable.
func (m *JoinMap) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

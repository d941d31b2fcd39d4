package display

import "strconv"

// SignalType is the kind of signal a routing port carries.
type SignalType int

// Signal types.
const (
	SignalAudio SignalType = 1 << iota
	SignalVideo

	SignalAudioVideo = SignalAudio | SignalVideo
)

// String returns the signal type name.
func (s SignalType) String() string {
	switch s {
	case SignalAudio:
		return "audio"
	case SignalVideo:
		return "video"
	case SignalAudioVideo:
		return "audio_video"
	default:
		return "unknown"
	}
}

// ConnectionType is the physical connector class of a routing port.
type ConnectionType string

// Connection types.
const (
	ConnectionHDMI ConnectionType = "hdmi"
)

// Selector is the capability-erased input selection command bound to one
// routing input port. Passing it to Device.ExecuteSwitch selects the port.
type Selector func()

// RoutingInputPort is an addressable video-source selector.
type RoutingInputPort struct {
	Key            string
	SignalType     SignalType
	ConnectionType ConnectionType

	// Index is the 1-based driver source-select index.
	Index int

	// Selector asserts the driver's select-source signal at Index.
	Selector Selector
}

// RouteChange is emitted when the display reports a new active input.
type RouteChange struct {
	Port       *RoutingInputPort
	SignalType SignalType
}

// PortRegistry is the fixed, ordered set of routing input ports for one
// display. It is immutable after construction.
type PortRegistry struct {
	ports   []*RoutingInputPort
	byIndex map[int]*RoutingInputPort
	byKey   map[string]*RoutingInputPort
}

// InputKey returns the routing port key for a 1-based source index.
func InputKey(index int) string {
	return "input" + strconv.Itoa(index)
}

// newPortRegistry builds one port per source index 1..count. selectFn is
// invoked with the bound index when a port's selector runs.
func newPortRegistry(count int, selectFn func(index int)) *PortRegistry {
	if count < 0 {
		count = 0
	}

	r := &PortRegistry{
		ports:   make([]*RoutingInputPort, 0, count),
		byIndex: make(map[int]*RoutingInputPort, count),
		byKey:   make(map[string]*RoutingInputPort, count),
	}

	for i := 1; i <= count; i++ {
		index := i
		port := &RoutingInputPort{
			Key:            InputKey(index),
			SignalType:     SignalAudioVideo,
			ConnectionType: ConnectionHDMI,
			Index:          index,
			Selector:       func() { selectFn(index) },
		}
		r.ports = append(r.ports, port)
		r.byIndex[index] = port
		r.byKey[port.Key] = port
	}

	return r
}

// Ports returns the ports in index order.
func (r *PortRegistry) Ports() []*RoutingInputPort {
	out := make([]*RoutingInputPort, len(r.ports))
	copy(out, r.ports)
	return out
}

// Len returns the number of ports.
func (r *PortRegistry) Len() int {
	return len(r.ports)
}

// ByIndex resolves the port bound to a driver source index.
func (r *PortRegistry) ByIndex(index int) (*RoutingInputPort, bool) {
	p, ok := r.byIndex[index]
	return p, ok
}

// ByKey resolves a port by its key ("input1", ...).
func (r *PortRegistry) ByKey(key string) (*RoutingInputPort, bool) {
	p, ok := r.byKey[key]
	return p, ok
}

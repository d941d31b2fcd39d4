// Package display implements the RoomView display bridge for Gray Logic.
//
// It binds a display exposed by a vendor network driver (power, volume,
// mute, video-input routing, lamp and status telemetry) onto a numbered
// signal bus ("joins") consumed by the building-control supervisor.
//
// # Architecture
//
// The bridge sits between the driver handle and the join bus:
//
//	┌──────────────┐  events   ┌────────────────┐  joins   ┌─────────────┐
//	│ Driver       │──────────►│ Device         │─────────►│ Join Bus    │
//	│ (roomview)   │◄──────────│ (this pkg)     │◄─────────│ (joinbus)   │
//	└──────────────┘  commands └────────────────┘ commands └─────────────┘
//
// # Key Responsibilities
//
//   - Cache device feedback in typed feedback channels
//   - Route raw driver events to exactly one feedback fire each
//   - Expose routing input ports ("input1".."inputN") for source selection
//   - Classify reachability with a timeout-based communication monitor
//   - Link feedbacks and commands to join numbers via a join map
//   - Re-publish full state whenever the bus reports it came online
//
// # Feedback Semantics
//
// FireUpdate is not edge-triggered. Every fire recomputes the value from
// the driver's cache and pushes it to the bus, so a reconnecting bus client
// always receives a consistent snapshot.
//
// # Thread Safety
//
// Driver events and bus notices are expected to arrive serialised per
// device. Lifecycle methods and the communication monitor are safe for
// concurrent use. Devices share no state with each other.
package display

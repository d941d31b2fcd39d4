// Package api implements the read-only HTTP introspection API and the
// WebSocket join relay of the display bridge.
//
// This package provides:
//   - REST endpoints for display state, driver information, inputs,
//     routing ports and the linked join map
//   - WebSocket hub relaying join bus values as "join.updated" events
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// The API never commands a display. Control flows through the join bus.
//
// # Graceful Degradation
//
// The server operates without MQTT. Reads and WebSocket connections work,
// only the join relay is silent.
package api

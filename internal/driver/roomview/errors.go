package roomview

import "errors"

var (
	// ErrMissingTransport is returned by New without an MQTT transport.
	ErrMissingTransport = errors.New("roomview: mqtt transport is required")

	// ErrInvalidIPID is returned for IP IDs outside 0x03 to 0xFE.
	ErrInvalidIPID = errors.New("roomview: invalid ip id")
)

package joinbus

import "errors"

var (
	// ErrMissingTransport is returned by New without an MQTT transport.
	ErrMissingTransport = errors.New("joinbus: mqtt transport is required")

	// ErrInvalidBusID is returned by New for an empty bus ID or one
	// containing MQTT wildcard or separator characters.
	ErrInvalidBusID = errors.New("joinbus: invalid bus id")

	// ErrJoinMapNotFound is returned when no join map is stored for a key.
	ErrJoinMapNotFound = errors.New("joinbus: join map not found")

	// ErrInvalidPayload is returned for set payloads that do not parse.
	ErrInvalidPayload = errors.New("joinbus: invalid payload")
)

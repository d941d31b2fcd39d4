package supervisor

import "errors"

var (
	// ErrUnknownType is returned by the factory for unsupported device types.
	ErrUnknownType = errors.New("supervisor: unknown device type")

	// ErrInvalidProperties is returned for malformed device properties.
	ErrInvalidProperties = errors.New("supervisor: invalid device properties")

	// ErrMissingBus is returned by New without a bus.
	ErrMissingBus = errors.New("supervisor: bus is required")
)

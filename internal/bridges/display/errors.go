package display

import "errors"

// Domain errors for the display bridge package.
var (
	// ErrNilBus is returned when LinkToBus is called without a bus.
	ErrNilBus = errors.New("display: bus is required")

	// ErrJoinMapSealed is returned when overrides are applied to a join map
	// that has already been linked.
	ErrJoinMapSealed = errors.New("display: join map is sealed")

	// ErrUnknownJoin is returned when an override names a join that is not
	// part of the map.
	ErrUnknownJoin = errors.New("display: unknown join name")

	// ErrInvalidJoin is returned when an override resolves to join number 0.
	ErrInvalidJoin = errors.New("display: invalid join number")
)

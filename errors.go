package lumix

import "errors"

var (
	ErrFormatMismatch = errors.New("audio format mismatch")
	ErrKindMismatch   = errors.New("track kind does not match the group")
	ErrRoutingCycle   = errors.New("routing would create a cycle")
	ErrNotStopped     = errors.New("transport is running")
	ErrTrackNotFound  = errors.New("track not found")
	ErrNoInstrument   = errors.New("track has no instrument")
	ErrUnknownPlugin  = errors.New("unknown plugin")
)

type (
	// ConfigurationError is returned when a stream does not fit where it is
	// connected, e.g. the channel count or sample rate of an input differs
	// from the mixer. The operation is rejected before any audio is produced
	// and the engine state is unchanged.
	ConfigurationError struct {
		Op  string
		Err error
	}

	// RoutingError is returned when a track cannot be routed as requested.
	// The routing is unchanged.
	RoutingError struct {
		Op  string
		Err error
	}

	// ResourceError is returned when a processor fails to load or
	// initialize. No slot is inserted.
	ResourceError struct {
		Op  string
		Err error
	}
)

func (e *ConfigurationError) Error() string { return "cannot " + e.Op + ": " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *RoutingError) Error() string { return "cannot " + e.Op + ": " + e.Err.Error() }
func (e *RoutingError) Unwrap() error { return e.Err }

func (e *ResourceError) Error() string { return "cannot " + e.Op + ": " + e.Err.Error() }
func (e *ResourceError) Unwrap() error { return e.Err }

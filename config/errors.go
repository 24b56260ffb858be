package config

import "errors"

// Sentinel errors for configuration-model invariants (spec.md §7 ConfigError).
var (
	ErrDuplicateSignalName = errors.New("config: duplicate signal name")
	ErrDuplicateFrameID    = errors.New("config: duplicate frame id")
	ErrDLCOverflow         = errors.New("config: signal overruns configured dlc")
	ErrInvalidDLC          = errors.New("config: dlc must be 1..8")
	ErrInvalidFrameID      = errors.New("config: frame id out of range for its format")
	ErrEmptyName           = errors.New("config: name must not be empty")
	ErrUnknownFrame        = errors.New("config: unknown frame id")
	ErrUnknownSignal       = errors.New("config: unknown signal name")
)

package cankit

import "errors"

// Sentinel errors for the Bus façade (spec.md §7: UnknownSignal). A receive
// timeout is not re-exported here: RecvNextSignals returns the active
// transport's own sentinel, socketcan.ErrTimeout in ModeRaw or
// bcm.ErrTimeout in ModeBCM.
var (
	// ErrUnknownSignal is returned by SendSignals when a name does not
	// appear in the bound Configuration.
	ErrUnknownSignal = errors.New("cankit: unknown signal")

	// ErrUnsupportedMode is returned by Open for a Mode value other than
	// ModeRaw or ModeBCM.
	ErrUnsupportedMode = errors.New("cankit: unsupported mode")
)

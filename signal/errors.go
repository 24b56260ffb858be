package signal

import "errors"

// Sentinel errors for signal geometry and encoding failures. Wrapped with
// %w and contextual detail by callers so errors.Is/errors.As discriminate
// without string matching.
var (
	ErrBitSpanOverflow = errors.New("signal: start_bit + num_bits overflows 64 bits")
	ErrNumBitsRange    = errors.New("signal: num_bits must be in 1..64")
	ErrZeroScaling     = errors.New("signal: scaling_factor must be nonzero")
	ErrSignedTooNarrow = errors.New("signal: signed value_type requires num_bits >= 2")
	ErrOutOfRange      = errors.New("signal: value out of representable range (strict mode)")
)

package socketcan

import "errors"

// Sentinel errors for the RAW transport (spec.md §7: IoError, Timeout).
var (
	// ErrTimeout is returned by Recv when no frame arrived within the
	// caller's deadline.
	ErrTimeout = errors.New("socketcan: receive timeout")

	// ErrUnsupported is returned on platforms without a native SocketCAN
	// implementation (anything other than GOOS=linux).
	ErrUnsupported = errors.New("socketcan: not supported on this platform")
)

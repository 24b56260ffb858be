package bcm

import "errors"

// ErrTimeout is returned by Recv when no message arrived within the
// caller's deadline.
var ErrTimeout = errors.New("bcm: receive timeout")

//go:build !linux

package bcm

import "errors"

// ErrUnsupported is returned on platforms without a native CAN_BCM socket.
var ErrUnsupported = errors.New("bcm: not supported on this platform")

// Open always fails on platforms without SocketCAN.
func Open(iface string, opts ...Option) (*Transport, error) {
	return nil, ErrUnsupported
}

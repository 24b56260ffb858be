// Package socketcan implements RawTransport (spec.md §4.4): a CAN_RAW
// socket bound to a named interface, with kernel-side receive filtering,
// single-frame send, and blocking receive with an optional timeout.
//
// Only the linux build carries a real implementation (raw_linux.go); all
// other GOOS values get a stub (raw_stub.go) that returns ErrUnsupported,
// so the rest of the module still compiles and its tests still run on the
// development host.
package socketcan

import (
	"log/slog"
	"time"

	"github.com/canlink/cankit/internal/logging"
	"github.com/canlink/cankit/internal/wire"
)

// Filter is one entry of the kernel's CAN_RAW_FILTER array: frames whose
// CAN ID ANDed with Mask equals ID ANDed with Mask are delivered.
type Filter struct {
	ID   uint32
	Mask uint32
}

// Standard and extended exact-match masks per spec.md §6. Both include the
// EFF format bit, so a filter only matches frames of its own format.
const (
	MaskStandard uint32 = wire.EFFFlag | wire.SFFMask
	MaskExtended uint32 = wire.EFFFlag | wire.EFFMask
)

// ExactFilter builds a Filter that matches exactly one frame ID of the given
// format.
func ExactFilter(id uint32, extended bool) Filter {
	if extended {
		return Filter{ID: (id & wire.EFFMask) | wire.EFFFlag, Mask: MaskExtended}
	}
	return Filter{ID: id & wire.SFFMask, Mask: MaskStandard}
}

type config struct {
	logger *slog.Logger
}

// Option configures Open, mirroring the teacher's functional-options
// constructors in internal/server.
type Option func(*config)

// WithLogger overrides the package-default logger for this transport.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func defaultConfig() *config {
	return &config{logger: logging.L()}
}

// Transport is an open CAN_RAW socket bound to one interface.
type Transport struct {
	sock   rawSocket
	iface  string
	logger *slog.Logger
}

// rawSocket is the minimal OS-facing surface RAW transport needs, split out
// so tests can substitute a fake without touching a real socket (teacher's
// internal/socketcan.Dev interface, generalized with filters and timeouts).
type rawSocket interface {
	SetFilters(filters []Filter) error
	Send(canID uint32, extended bool, payload []byte) error
	Recv(timeout time.Duration) (id uint32, extended bool, payload []byte, err error)
	Close() error
}

// SetReceiveFilters installs the kernel-side filter array. An empty slice
// installs a filter that blocks everything (spec.md §4.4: "if the set is
// empty after configuration, install a filter that blocks everything").
func (t *Transport) SetReceiveFilters(filters []Filter) error {
	if len(filters) == 0 {
		filters = []Filter{{ID: 0, Mask: 0xFFFFFFFF}}
	}
	if err := t.sock.SetFilters(filters); err != nil {
		return err
	}
	logging.Event(t.logger, slog.LevelInfo, "raw_filter_installed", "iface", t.iface, "count", len(filters))
	return nil
}

// Send writes one CAN frame. payload beyond 8 bytes is ignored.
func (t *Transport) Send(canID uint32, extended bool, payload []byte) error {
	return t.sock.Send(canID, extended, payload)
}

// Recv blocks for up to timeout (zero means wait indefinitely) and returns
// the next delivered frame, or ErrTimeout if the deadline elapses first.
func (t *Transport) Recv(timeout time.Duration) (id uint32, extended bool, payload []byte, err error) {
	id, extended, payload, err = t.sock.Recv(timeout)
	if err == ErrTimeout {
		logging.Event(t.logger, slog.LevelWarn, "recv_timeout", "iface", t.iface, "timeout", timeout)
	}
	return id, extended, payload, err
}

// Close releases the underlying socket.
func (t *Transport) Close() error { return t.sock.Close() }

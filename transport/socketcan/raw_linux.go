//go:build linux

package socketcan

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canlink/cankit/internal/logging"
	"github.com/canlink/cankit/internal/metrics"
	"github.com/canlink/cankit/internal/wire"
)

// Open binds a CAN_RAW socket to iface, generalizing the teacher's
// internal/socketcan.Open(iface string) into a functional-options
// constructor (internal/server.NewServer idiom) so the logger is injectable
// rather than a hardwired package global. Metrics go to the package-level
// counters in internal/metrics.
func Open(iface string, opts ...Option) (*Transport, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket(AF_CAN, CAN_RAW): %w", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: interface %q: %w", iface, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind(can@%s): %w", iface, err)
	}

	logging.Event(cfg.logger, slog.LevelInfo, "socketcan_open", "iface", iface)
	return &Transport{
		sock:   &rawFD{fd: fd},
		iface:  iface,
		logger: cfg.logger,
	}, nil
}

// rawFD is the real, Linux-backed rawSocket.
type rawFD struct{ fd int }

// linux struct can_filter: {can_id u32, can_mask u32}.
type canFilter struct {
	id   uint32
	mask uint32
}

func (r *rawFD) SetFilters(filters []Filter) error {
	raw := make([]canFilter, len(filters))
	for i, f := range filters {
		raw[i] = canFilter{id: f.ID, mask: f.Mask}
	}
	buf := make([]byte, len(raw)*8)
	for i, f := range raw {
		off := i * 8
		binary.NativeEndian.PutUint32(buf[off:off+4], f.id)
		binary.NativeEndian.PutUint32(buf[off+4:off+8], f.mask)
	}
	if err := unix.SetsockoptString(r.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, string(buf)); err != nil {
		metrics.IncError(metrics.ErrRawFilter)
		return fmt.Errorf("socketcan: setsockopt(CAN_RAW_FILTER): %w", err)
	}
	return nil
}

func (r *rawFD) Send(canID uint32, extended bool, payload []byte) error {
	f := wire.NewDataFrame(canID, extended, payload)
	buf := f.Marshal()
	if _, err := unix.Write(r.fd, buf); err != nil {
		metrics.IncError(metrics.ErrRawWrite)
		return fmt.Errorf("socketcan: write: %w", err)
	}
	metrics.FramesSent.Inc()
	return nil
}

func (r *rawFD) Recv(timeout time.Duration) (uint32, bool, []byte, error) {
	tv := unix.NsecToTimeval(int64(timeout))
	if err := unix.SetsockoptTimeval(r.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return 0, false, nil, fmt.Errorf("socketcan: setsockopt(SO_RCVTIMEO): %w", err)
	}

	buf := make([]byte, wire.FrameSize)
	n, err := unix.Read(r.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			metrics.Timeouts.Inc()
			return 0, false, nil, ErrTimeout
		}
		metrics.IncError(metrics.ErrRawRead)
		return 0, false, nil, fmt.Errorf("socketcan: read: %w", err)
	}
	if n != wire.FrameSize {
		metrics.IncError(metrics.ErrRawRead)
		return 0, false, nil, fmt.Errorf("socketcan: short read: %d bytes", n)
	}

	var f wire.Frame
	if err := wire.Unmarshal(buf, &f); err != nil {
		metrics.IncError(metrics.ErrCodec)
		return 0, false, nil, err
	}
	metrics.FramesReceived.Inc()
	payload := make([]byte, f.Len)
	copy(payload, f.Data[:f.Len])
	return f.ID(), f.Extended(), payload, nil
}

func (r *rawFD) Close() error { return unix.Close(r.fd) }

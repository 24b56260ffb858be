//go:build linux

package bcm

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canlink/cankit/internal/logging"
)

// Open connects a CAN_BCM socket to iface, grounded on the teacher's
// internal/socketcan.Open dial sequence (socket, resolve interface, bind)
// with the connect(2) call CAN_BCM requires in place of CAN_RAW's bind(2).
func Open(iface string, opts ...Option) (*Transport, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_DGRAM, unix.CAN_BCM)
	if err != nil {
		return nil, fmt.Errorf("bcm: socket(AF_CAN, CAN_BCM): %w", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bcm: interface %q: %w", iface, err)
	}
	if err := unix.Connect(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bcm: connect(can@%s): %w", iface, err)
	}

	logging.Event(cfg.logger, slog.LevelInfo, "bcm_open", "iface", iface)
	return &Transport{
		sock:   &bcmFD{fd: fd},
		iface:  iface,
		logger: cfg.logger,
	}, nil
}

type bcmFD struct{ fd int }

func (b *bcmFD) Write(buf []byte) error {
	_, err := unix.Write(b.fd, buf)
	return err
}

func (b *bcmFD) Read(buf []byte) (int, error) {
	n, err := unix.Read(b.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrTimeout
	}
	return n, err
}

func (b *bcmFD) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(int64(d))
	return unix.SetsockoptTimeval(b.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func (b *bcmFD) Close() error { return unix.Close(b.fd) }

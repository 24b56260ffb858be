// Package bcm implements BcmTransport (spec.md §4.5): a connected CAN_BCM
// socket that hands periodic transmission and change-filtered reception off
// to the kernel. Every message on the wire is a Header (header.go) followed
// by zero or more 16-byte CAN frames.
//
// Only the linux build (bcm_linux.go) talks to a real socket; bcm_stub.go
// carries every other GOOS so the rest of the module still builds.
package bcm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/canlink/cankit/internal/logging"
	"github.com/canlink/cankit/internal/metrics"
	"github.com/canlink/cankit/internal/wire"
)

// logEvent mirrors the event-name-as-first-arg slog convention every
// cankit transport uses, so callers only ever supply the remaining
// key/value attributes (see internal/logging.Event).
func (t *Transport) logEvent(level slog.Level, event string, args ...any) {
	logging.Event(t.logger, level, event, args...)
}

func init() {
	// spec.md §4.5: "implementations must compute alignment to match the
	// platform's long width" — fail fast if that computation ever drifts
	// from the real kernel ABI size for this architecture.
	switch longWidth {
	case 8:
		if headerSize != 56 {
			panic(fmt.Sprintf("bcm: computed header size %d, want 56 for 64-bit long", headerSize))
		}
	case 4:
		if headerSize != 40 {
			panic(fmt.Sprintf("bcm: computed header size %d, want 40 for 32-bit long", headerSize))
		}
	}
}

type config struct {
	logger *slog.Logger
}

// Option configures Open, following the same functional-options shape as
// transport/socketcan.Option.
type Option func(*config)

// WithLogger overrides the package-default logger for this transport.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func defaultConfig() *config {
	return &config{logger: logging.L()}
}

// bcmSocket is the minimal OS-facing surface the BCM transport needs,
// mirroring transport/socketcan's rawSocket split for testability.
type bcmSocket interface {
	Write(buf []byte) error
	Read(buf []byte) (int, error)
	SetReadTimeout(time.Duration) error
	Close() error
}

// Transport is a connected CAN_BCM socket. pending holds frames already
// read from the kernel but not yet consumed by Recv, since one kernel
// message can carry more than one frame (spec.md §4.5's "yields them one
// at a time").
type Transport struct {
	sock    bcmSocket
	iface   string
	logger  *slog.Logger
	pending []wire.Frame
}

func msToTimeval(ms int) Timeval {
	d := time.Duration(ms) * time.Millisecond
	return Timeval{Sec: int64(d / time.Second), Usec: int64((d % time.Second) / time.Microsecond)}
}

func encodeFrameID(id uint32, extended bool) uint32 {
	if extended {
		return (id & wire.EFFMask) | wire.EFFFlag
	}
	return id & wire.SFFMask
}

// StartPeriodicSend issues TX_SETUP for frameID with cycleMS as ival2
// (spec.md §4.5: "send one BCM message with opcode TX_SETUP, flags
// {SETTIMER, STARTTIMER}, nframes=1, ival2 = cycle_time_ms, count=0").
// Calling it again for the same frame ID updates the payload in place;
// the kernel continues transmission with the new data.
func (t *Transport) StartPeriodicSend(frameID uint32, extended bool, cycleMS int, payload []byte) error {
	h := Header{
		Opcode:  OpTxSetup,
		Flags:   FlagSetTimer | FlagStartTimer,
		Count:   0,
		Ival2:   msToTimeval(cycleMS),
		FrameID: encodeFrameID(frameID, extended),
		Nframes: 1,
	}
	frame := wire.NewDataFrame(frameID, extended, payload)
	buf := append(h.Marshal(), frame.Marshal()...)
	if err := t.sock.Write(buf); err != nil {
		metrics.IncError(metrics.ErrBCMWrite)
		return fmt.Errorf("bcm: TX_SETUP %#x: %w", frameID, err)
	}
	metrics.BCMSetups.Inc()
	t.logEvent(slog.LevelInfo, "bcm_tx_setup", "frame_id", frameID, "cycle_ms", cycleMS)
	return nil
}

// SendOnce issues TX_SEND: the kernel transmits payload once immediately,
// with no periodic timer armed (used for frames without a cycle_time_ms).
func (t *Transport) SendOnce(frameID uint32, extended bool, payload []byte) error {
	h := Header{
		Opcode:  OpTxSend,
		FrameID: encodeFrameID(frameID, extended),
		Nframes: 1,
	}
	frame := wire.NewDataFrame(frameID, extended, payload)
	buf := append(h.Marshal(), frame.Marshal()...)
	if err := t.sock.Write(buf); err != nil {
		metrics.IncError(metrics.ErrBCMWrite)
		return fmt.Errorf("bcm: TX_SEND %#x: %w", frameID, err)
	}
	metrics.FramesSent.Inc()
	return nil
}

// StopPeriodicSend issues TX_DELETE for frameID.
func (t *Transport) StopPeriodicSend(frameID uint32, extended bool) error {
	h := Header{Opcode: OpTxDelete, FrameID: encodeFrameID(frameID, extended)}
	if err := t.sock.Write(h.Marshal()); err != nil {
		metrics.IncError(metrics.ErrBCMWrite)
		return fmt.Errorf("bcm: TX_DELETE %#x: %w", frameID, err)
	}
	metrics.BCMDeletes.Inc()
	return nil
}

// SetupChangeFilteredReceive issues RX_SETUP for frameID with an all-ones
// payload mask, so the kernel delivers on any data change, and an optional
// throttle interval (spec.md §4.5's "throttle_time_ms ... rate-limit of
// delivery").
func (t *Transport) SetupChangeFilteredReceive(frameID uint32, extended bool, throttleMS int) error {
	flags := FlagSetTimer
	var ival2 Timeval
	if throttleMS > 0 {
		ival2 = msToTimeval(throttleMS)
	}
	h := Header{
		Opcode:  OpRxSetup,
		Flags:   flags,
		Ival2:   ival2,
		FrameID: encodeFrameID(frameID, extended),
		Nframes: 1,
	}
	mask := wire.NewDataFrame(frameID, extended, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	buf := append(h.Marshal(), mask.Marshal()...)
	if err := t.sock.Write(buf); err != nil {
		metrics.IncError(metrics.ErrBCMWrite)
		return fmt.Errorf("bcm: RX_SETUP %#x: %w", frameID, err)
	}
	metrics.BCMSetups.Inc()
	t.logEvent(slog.LevelInfo, "bcm_rx_setup", "frame_id", frameID, "throttle_ms", throttleMS)
	return nil
}

// StopReceive issues RX_DELETE for frameID.
func (t *Transport) StopReceive(frameID uint32, extended bool) error {
	h := Header{Opcode: OpRxDelete, FrameID: encodeFrameID(frameID, extended)}
	if err := t.sock.Write(h.Marshal()); err != nil {
		metrics.IncError(metrics.ErrBCMWrite)
		return fmt.Errorf("bcm: RX_DELETE %#x: %w", frameID, err)
	}
	metrics.BCMDeletes.Inc()
	return nil
}

// Recv yields the next frame from the BCM socket, reading a fresh
// header+frames message from the kernel only once any previously
// delivered frames have been consumed. timeout bounds only the kernel
// read that refills the pending queue; a call that can be satisfied from
// already-buffered frames never blocks.
func (t *Transport) Recv(timeout time.Duration) (id uint32, extended bool, payload []byte, err error) {
	if len(t.pending) == 0 {
		if err := t.fill(timeout); err != nil {
			return 0, false, nil, err
		}
	}
	f := t.pending[0]
	t.pending = t.pending[1:]
	metrics.FramesReceived.Inc()
	out := make([]byte, f.Len)
	copy(out, f.Data[:f.Len])
	return f.ID(), f.Extended(), out, nil
}

func (t *Transport) fill(timeout time.Duration) error {
	if err := t.sock.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("bcm: set read timeout: %w", err)
	}
	readBuf := make([]byte, headerSize+wire.FrameSize*256)
	n, err := t.sock.Read(readBuf)
	if err != nil {
		if err == ErrTimeout {
			metrics.Timeouts.Inc()
			t.logEvent(slog.LevelWarn, "recv_timeout", "iface", t.iface, "timeout", timeout)
			return ErrTimeout
		}
		metrics.IncError(metrics.ErrBCMRead)
		return fmt.Errorf("bcm: read: %w", err)
	}
	h, consumed, err := UnmarshalHeader(readBuf[:n])
	if err != nil {
		metrics.IncError(metrics.ErrCodec)
		return err
	}
	frames := make([]wire.Frame, 0, h.Nframes)
	off := consumed
	for i := uint32(0); i < h.Nframes; i++ {
		if off+wire.FrameSize > n {
			break
		}
		var f wire.Frame
		if err := wire.Unmarshal(readBuf[off:off+wire.FrameSize], &f); err != nil {
			metrics.IncError(metrics.ErrCodec)
			return err
		}
		frames = append(frames, f)
		off += wire.FrameSize
	}
	if len(frames) == 0 {
		return fmt.Errorf("bcm: message carried no frames")
	}
	t.pending = frames
	return nil
}

// Close releases the underlying socket.
func (t *Transport) Close() error { return t.sock.Close() }

package cankit

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/canlink/cankit/config"
	"github.com/canlink/cankit/internal/logging"
	"github.com/canlink/cankit/kcd"
	"github.com/canlink/cankit/transport/bcm"
	"github.com/canlink/cankit/transport/socketcan"
)

// rawTransport is the subset of *socketcan.Transport the Bus façade needs,
// split out so tests can substitute a fake transport.
type rawTransport interface {
	SetReceiveFilters(filters []socketcan.Filter) error
	Send(canID uint32, extended bool, payload []byte) error
	Recv(timeout time.Duration) (id uint32, extended bool, payload []byte, err error)
	Close() error
}

// bcmTransport is the subset of *bcm.Transport the Bus façade needs.
type bcmTransport interface {
	StartPeriodicSend(frameID uint32, extended bool, cycleMS int, payload []byte) error
	SendOnce(frameID uint32, extended bool, payload []byte) error
	StopPeriodicSend(frameID uint32, extended bool) error
	SetupChangeFilteredReceive(frameID uint32, extended bool, throttleMS int) error
	StopReceive(frameID uint32, extended bool) error
	Recv(timeout time.Duration) (id uint32, extended bool, payload []byte, err error)
	Close() error
}

// Bus holds a bound Configuration and the one transport opened for it
// (spec.md §4.6). It is not safe for concurrent use: the socket is
// exclusively owned by one Bus, and callers must serialize externally
// (spec.md §5).
type Bus struct {
	cfg    *config.Configuration
	mode   Mode
	raw    rawTransport
	bcmT   bcmTransport
	logger *slog.Logger

	// lastPayload remembers the most recently sent bytes per outgoing
	// frame ID, so a SendSignals call that names only some of a frame's
	// signals leaves the others at their previously sent value
	// (spec.md §4.6: "unspecified signals retain their previously sent
	// value; first time, uses default_value for each signal").
	lastPayload map[uint32][8]byte
}

// Open validates and clones cfg, binds a transport of the given Mode to
// iface, and returns a ready Bus. cfg is cloned so that external mutation
// after Open cannot corrupt an installed filter set (spec.md §5).
func Open(cfg *config.Configuration, iface string, mode Mode, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bc := defaultBusConfig()
	for _, opt := range opts {
		opt(bc)
	}

	b := &Bus{
		cfg:         cfg.Clone(),
		mode:        mode,
		logger:      bc.logger,
		lastPayload: make(map[uint32][8]byte),
	}

	switch mode {
	case ModeRaw:
		tr, err := socketcan.Open(iface, socketcan.WithLogger(bc.logger))
		if err != nil {
			return nil, err
		}
		b.raw = tr
	case ModeBCM:
		tr, err := bcm.Open(iface, bcm.WithLogger(bc.logger))
		if err != nil {
			return nil, err
		}
		b.bcmT = tr
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	logging.Event(b.logger, slog.LevelInfo, "bus_open", "iface", iface, "mode", mode)
	return b, nil
}

// InitReception installs receive filters for every frame this Bus does not
// produce. In BCM mode it also arms change-filtered RX for each such frame
// (spec.md §4.6).
func (b *Bus) InitReception() error {
	others := b.cfg.FramesForOthers()

	if b.mode == ModeRaw {
		filters := make([]socketcan.Filter, 0, len(others))
		for _, id := range others {
			f, _ := b.cfg.Frame(id)
			filters = append(filters, socketcan.ExactFilter(id, f.Extended))
		}
		return b.raw.SetReceiveFilters(filters)
	}

	for _, id := range others {
		f, _ := b.cfg.Frame(id)
		throttle := 0
		if f.ThrottleTimeMS != nil {
			throttle = *f.ThrottleTimeMS
		}
		if err := b.bcmT.SetupChangeFilteredReceive(id, f.Extended, throttle); err != nil {
			return err
		}
	}
	return nil
}

// SendSignals encodes values (signal name -> physical value) and writes
// them out, grouped by frame ID in ascending order (spec.md §5's
// deterministic intra-call ordering). Names not present in the bound
// Configuration fail the whole call before anything is sent.
func (b *Bus) SendSignals(values map[string]float64) error {
	byFrame := make(map[uint32]map[string]float64)
	for name, v := range values {
		frameID, _, err := b.cfg.FindSignal(name)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownSignal, name)
		}
		if byFrame[frameID] == nil {
			byFrame[frameID] = make(map[string]float64)
		}
		byFrame[frameID][name] = v
	}

	ids := make([]uint32, 0, len(byFrame))
	for id := range byFrame {
		ids = append(ids, id)
	}
	sortUint32(ids)

	for _, id := range ids {
		if err := b.sendFrame(id, byFrame[id]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) sendFrame(frameID uint32, values map[string]float64) error {
	f, ok := b.cfg.Frame(frameID)
	if !ok {
		return fmt.Errorf("%w: frame %#x", ErrUnknownSignal, frameID)
	}

	payload, ok := b.lastPayload[frameID]
	if !ok {
		payload = defaultPayload(f)
	}

	for _, s := range f.Signals {
		v, wanted := values[s.Name]
		if !wanted {
			continue
		}
		if err := s.Definition.Encode(&payload, v, false); err != nil {
			return fmt.Errorf("signal %q: %w", s.Name, err)
		}
	}
	b.lastPayload[frameID] = payload

	switch b.mode {
	case ModeRaw:
		return b.raw.Send(frameID, f.Extended, payload[:f.DLC])
	default:
		if f.CycleTimeMS != nil {
			return b.bcmT.StartPeriodicSend(frameID, f.Extended, *f.CycleTimeMS, payload[:f.DLC])
		}
		return b.bcmT.SendOnce(frameID, f.Extended, payload[:f.DLC])
	}
}

// defaultPayload builds the initial payload for a frame the Bus has not
// sent before: every signal's DefaultValue, encoded into a fresh buffer.
func defaultPayload(f config.Frame) [8]byte {
	var payload [8]byte
	for _, s := range f.Signals {
		_ = s.Definition.Encode(&payload, s.DefaultValue, false)
	}
	return payload
}

// RecvNextSignals reads one frame and decodes every signal defined for its
// frame ID. Returns ErrTimeout (via the active transport's sentinel) if no
// frame arrives within timeout.
func (b *Bus) RecvNextSignals(timeout time.Duration) (map[string]float64, error) {
	var id uint32
	var payload []byte
	var err error
	if b.mode == ModeRaw {
		id, _, payload, err = b.raw.Recv(timeout)
	} else {
		id, _, payload, err = b.bcmT.Recv(timeout)
	}
	if err != nil {
		return nil, err
	}

	f, ok := b.cfg.Frame(id)
	if !ok {
		return map[string]float64{}, nil
	}
	var buf [8]byte
	copy(buf[:], payload)

	out := make(map[string]float64, len(f.Signals))
	for _, s := range f.Signals {
		v, err := s.Definition.Decode(buf)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", s.Name, err)
		}
		out[s.Name] = v
	}
	return out, nil
}

// WriteConfiguration writes the bound Configuration to path as KCD,
// delegating the wire format to package kcd (spec.md §4.6).
func (b *Bus) WriteConfiguration(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return kcd.Write(file, b.cfg)
}

// Close issues BCM TX_DELETE for every active periodic frame, then
// releases the socket. Safe to call once; the underlying transport handles
// a double-close the way the OS does.
func (b *Bus) Close() error {
	if b.mode == ModeBCM {
		for _, id := range b.cfg.FramesForEgo() {
			f, _ := b.cfg.Frame(id)
			if f.CycleTimeMS != nil {
				_ = b.bcmT.StopPeriodicSend(id, f.Extended)
			}
		}
		return b.bcmT.Close()
	}
	return b.raw.Close()
}

func sortUint32(ids []uint32) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

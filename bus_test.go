package cankit

import (
	"errors"
	"testing"
	"time"

	"github.com/canlink/cankit/config"
	"github.com/canlink/cankit/signal"
	"github.com/canlink/cankit/transport/socketcan"
)

type fakeRaw struct {
	filters []socketcan.Filter
	sent    []sentFrame
	recvID  uint32
	recvPay []byte
	recvErr error
	closed  bool
}

type sentFrame struct {
	id       uint32
	extended bool
	payload  []byte
}

func (f *fakeRaw) SetReceiveFilters(filters []socketcan.Filter) error {
	f.filters = filters
	return nil
}

func (f *fakeRaw) Send(canID uint32, extended bool, payload []byte) error {
	f.sent = append(f.sent, sentFrame{canID, extended, append([]byte(nil), payload...)})
	return nil
}

func (f *fakeRaw) Recv(timeout time.Duration) (uint32, bool, []byte, error) {
	if f.recvErr != nil {
		return 0, false, nil, f.recvErr
	}
	return f.recvID, false, f.recvPay, nil
}

func (f *fakeRaw) Close() error { f.closed = true; return nil }

func exampleConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cfg := config.New("bus0", "ECU")
	if err := cfg.AddFrame(config.Frame{
		ID:              7,
		DLC:             8,
		Name:            "ExampleFrame",
		ProducerNodeIDs: map[string]struct{}{"ECU": {}},
		Signals: []config.Signal{
			{Name: "testsignal1", Definition: signal.Definition{StartBit: 56, NumBits: 1, ScalingFactor: 1}},
			{Name: "testsignal2", Definition: signal.Definition{StartBit: 0, NumBits: 16, ScalingFactor: 1}, DefaultValue: 5},
		},
	}); err != nil {
		t.Fatalf("AddFrame: %v", err)
	}
	if err := cfg.AddFrame(config.Frame{
		ID:              9,
		DLC:             8,
		Name:            "IncomingFrame",
		ProducerNodeIDs: map[string]struct{}{"OTHER": {}},
		Signals: []config.Signal{
			{Name: "othersignal", Definition: signal.Definition{StartBit: 0, NumBits: 8, ScalingFactor: 1}},
		},
	}); err != nil {
		t.Fatalf("AddFrame: %v", err)
	}
	return cfg
}

func newTestBus(t *testing.T, raw *fakeRaw) *Bus {
	t.Helper()
	cfg := exampleConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &Bus{
		cfg:         cfg.Clone(),
		mode:        ModeRaw,
		raw:         raw,
		lastPayload: make(map[uint32][8]byte),
	}
}

func TestSendSignals_UnknownNameFails(t *testing.T) {
	b := newTestBus(t, &fakeRaw{})
	err := b.SendSignals(map[string]float64{"nope": 1})
	if !errors.Is(err, ErrUnknownSignal) {
		t.Fatalf("err = %v, want ErrUnknownSignal", err)
	}
}

func TestSendSignals_RetainsPreviousAndDefaultsUnspecified(t *testing.T) {
	raw := &fakeRaw{}
	b := newTestBus(t, raw)

	if err := b.SendSignals(map[string]float64{"testsignal1": 1}); err != nil {
		t.Fatalf("SendSignals: %v", err)
	}
	if len(raw.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(raw.sent))
	}
	// testsignal2 has DefaultValue=5, not yet explicitly sent: its bytes
	// (0,1) should carry 5 even though only testsignal1 was named.
	first := raw.sent[0].payload
	if first[0] != 5 || first[1] != 0 {
		t.Fatalf("default value not applied: %v", first)
	}
	if first[7] != 1 {
		t.Fatalf("testsignal1 bit not set: %v", first)
	}

	if err := b.SendSignals(map[string]float64{"testsignal1": 0}); err != nil {
		t.Fatalf("SendSignals: %v", err)
	}
	second := raw.sent[1].payload
	if second[0] != 5 || second[1] != 0 {
		t.Fatalf("retained testsignal2 default lost across calls: %v", second)
	}
	if second[7] != 0 {
		t.Fatalf("testsignal1 not cleared on re-send with 0: %v", second)
	}
}

func TestRecvNextSignals_DecodesAllSignalsForFrame(t *testing.T) {
	raw := &fakeRaw{recvID: 9, recvPay: []byte{42, 0, 0, 0, 0, 0, 0, 0}}
	b := newTestBus(t, raw)

	out, err := b.RecvNextSignals(time.Second)
	if err != nil {
		t.Fatalf("RecvNextSignals: %v", err)
	}
	if out["othersignal"] != 42 {
		t.Fatalf("othersignal = %v, want 42", out["othersignal"])
	}
}

func TestRecvNextSignals_PropagatesTimeout(t *testing.T) {
	raw := &fakeRaw{recvErr: socketcan.ErrTimeout}
	b := newTestBus(t, raw)
	if _, err := b.RecvNextSignals(time.Millisecond); !errors.Is(err, socketcan.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestInitReception_InstallsFiltersForNonEgoFramesOnly(t *testing.T) {
	raw := &fakeRaw{}
	b := newTestBus(t, raw)
	if err := b.InitReception(); err != nil {
		t.Fatalf("InitReception: %v", err)
	}
	if len(raw.filters) != 1 || raw.filters[0].ID != 9 {
		t.Fatalf("expected a filter only for frame 9, got %+v", raw.filters)
	}
}

func TestClose_ClosesUnderlyingTransport(t *testing.T) {
	raw := &fakeRaw{}
	b := newTestBus(t, raw)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !raw.closed {
		t.Fatal("expected raw transport to be closed")
	}
}

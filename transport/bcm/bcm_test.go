package bcm

import (
	"testing"
	"time"

	"github.com/canlink/cankit/internal/wire"
)

type fakeSocket struct {
	writes  [][]byte
	reads   [][]byte
	readIdx int
	closed  bool
}

func (f *fakeSocket) Write(buf []byte) error {
	f.writes = append(f.writes, append([]byte(nil), buf...))
	return nil
}

func (f *fakeSocket) Read(buf []byte) (int, error) {
	msg := f.reads[f.readIdx]
	f.readIdx++
	n := copy(buf, msg)
	return n, nil
}

func (f *fakeSocket) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

func newTestTransport(sock *fakeSocket) *Transport {
	return &Transport{sock: sock}
}

func TestStartPeriodicSend_WritesTxSetup(t *testing.T) {
	sock := &fakeSocket{}
	tr := newTestTransport(sock)
	if err := tr.StartPeriodicSend(0x10, false, 100, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("StartPeriodicSend: %v", err)
	}
	if len(sock.writes) != 1 {
		t.Fatalf("expected one write, got %d", len(sock.writes))
	}
	h, consumed, err := UnmarshalHeader(sock.writes[0])
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if h.Opcode != OpTxSetup || h.Flags != FlagSetTimer|FlagStartTimer || h.Nframes != 1 {
		t.Fatalf("unexpected header: %+v", h)
	}
	if h.Ival2.Sec != 0 || h.Ival2.Usec != 100000 {
		t.Fatalf("ival2 = %+v, want 100ms", h.Ival2)
	}
	var f wire.Frame
	if err := wire.Unmarshal(sock.writes[0][consumed:], &f); err != nil {
		t.Fatalf("wire.Unmarshal: %v", err)
	}
	if f.ID() != 0x10 || f.Len != 4 {
		t.Fatalf("unexpected trailing frame: %+v", f)
	}
}

func TestStopPeriodicSend_WritesTxDeleteWithNoFrames(t *testing.T) {
	sock := &fakeSocket{}
	tr := newTestTransport(sock)
	if err := tr.StopPeriodicSend(0x10, false); err != nil {
		t.Fatalf("StopPeriodicSend: %v", err)
	}
	if len(sock.writes[0]) != headerSize {
		t.Fatalf("TX_DELETE wrote %d bytes, want exactly the header (%d)", len(sock.writes[0]), headerSize)
	}
	h, _, _ := UnmarshalHeader(sock.writes[0])
	if h.Opcode != OpTxDelete {
		t.Fatalf("opcode = %d, want OpTxDelete", h.Opcode)
	}
}

func TestSetupChangeFilteredReceive_SetsThrottleAsIval2(t *testing.T) {
	sock := &fakeSocket{}
	tr := newTestTransport(sock)
	if err := tr.SetupChangeFilteredReceive(0x20, false, 250); err != nil {
		t.Fatalf("SetupChangeFilteredReceive: %v", err)
	}
	h, _, _ := UnmarshalHeader(sock.writes[0])
	if h.Opcode != OpRxSetup || h.Ival2.Usec != 250000 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestRecv_ReadsOneFrameFromHeaderMessage(t *testing.T) {
	h := Header{Opcode: OpRxSetup, FrameID: 0x30, Nframes: 1}
	frame := wire.NewDataFrame(0x30, false, []byte{9, 9, 9})
	msg := append(h.Marshal(), frame.Marshal()...)

	sock := &fakeSocket{reads: [][]byte{msg}}
	tr := newTestTransport(sock)

	id, extended, payload, err := tr.Recv(0)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if id != 0x30 || extended || len(payload) != 3 || payload[0] != 9 {
		t.Fatalf("unexpected frame: id=%#x extended=%v payload=%v", id, extended, payload)
	}
}

func TestRecv_YieldsEachFrameOfMultiFrameMessageInOrder(t *testing.T) {
	h := Header{Opcode: OpRxSetup, FrameID: 0x40, Nframes: 2}
	f1 := wire.NewDataFrame(0x40, false, []byte{1})
	f2 := wire.NewDataFrame(0x41, false, []byte{2})
	msg := append(h.Marshal(), append(f1.Marshal(), f2.Marshal()...)...)

	sock := &fakeSocket{reads: [][]byte{msg}}
	tr := newTestTransport(sock)

	id1, _, p1, err := tr.Recv(0)
	if err != nil {
		t.Fatalf("Recv 1: %v", err)
	}
	id2, _, p2, err := tr.Recv(0)
	if err != nil {
		t.Fatalf("Recv 2: %v", err)
	}
	if id1 != 0x40 || p1[0] != 1 || id2 != 0x41 || p2[0] != 2 {
		t.Fatalf("unexpected sequence: (%#x,%v) (%#x,%v)", id1, p1, id2, p2)
	}
	if sock.readIdx != 1 {
		t.Fatalf("expected a single kernel read for two buffered frames, got %d reads", sock.readIdx)
	}
}

func TestClose_ClosesUnderlyingSocket(t *testing.T) {
	sock := &fakeSocket{}
	tr := newTestTransport(sock)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sock.closed {
		t.Fatal("expected underlying socket to be closed")
	}
}

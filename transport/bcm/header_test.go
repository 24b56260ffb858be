package bcm

import "testing"

func TestComputeHeaderSize_64bitLong(t *testing.T) {
	if got := computeHeaderSize(8); got != 56 {
		t.Fatalf("computeHeaderSize(8) = %d, want 56", got)
	}
}

func TestComputeHeaderSize_32bitLong(t *testing.T) {
	if got := computeHeaderSize(4); got != 40 {
		t.Fatalf("computeHeaderSize(4) = %d, want 40", got)
	}
}

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{
		Opcode:  OpTxSetup,
		Flags:   FlagSetTimer | FlagStartTimer,
		Count:   0,
		Ival1:   Timeval{Sec: 0, Usec: 0},
		Ival2:   Timeval{Sec: 0, Usec: 50000},
		FrameID: 0x123,
		Nframes: 1,
	}
	buf := h.Marshal()
	if len(buf) != headerSize {
		t.Fatalf("Marshal produced %d bytes, want %d", len(buf), headerSize)
	}
	got, consumed, err := UnmarshalHeader(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if consumed != headerSize {
		t.Fatalf("consumed = %d, want %d", consumed, headerSize)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeader_RejectsShortBuffer(t *testing.T) {
	if _, _, err := UnmarshalHeader(make([]byte, headerSize-1)); err == nil {
		t.Fatal("expected error on short header buffer")
	}
}

func TestMsToTimeval(t *testing.T) {
	tv := msToTimeval(1500)
	if tv.Sec != 1 || tv.Usec != 500000 {
		t.Fatalf("msToTimeval(1500) = %+v, want {1 500000}", tv)
	}
}

func TestEncodeFrameID_SetsExtendedFlagOnlyWhenRequested(t *testing.T) {
	if id := encodeFrameID(0x123, false); id != 0x123 {
		t.Fatalf("standard id = %#x, want 0x123", id)
	}
	id := encodeFrameID(0x1ABCDEF, true)
	if id&0x80000000 == 0 {
		t.Fatalf("extended id missing EFF flag: %#x", id)
	}
}

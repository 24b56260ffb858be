package wire

import "testing"

func TestFrame_MarshalUnmarshalRoundTrip(t *testing.T) {
	in := NewDataFrame(0x123, false, []byte{1, 2, 3, 4})
	buf := in.Marshal()
	if len(buf) != FrameSize {
		t.Fatalf("marshal length = %d, want %d", len(buf), FrameSize)
	}
	var out Frame
	if err := Unmarshal(buf, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.CANID != in.CANID || out.Len != in.Len || out.Data != in.Data {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestFrame_ExtendedID(t *testing.T) {
	f := NewDataFrame(0x1FFFFFFF, true, nil)
	if !f.Extended() {
		t.Fatal("expected extended flag set")
	}
	if f.ID() != 0x1FFFFFFF {
		t.Fatalf("ID() = %#x, want %#x", f.ID(), 0x1FFFFFFF)
	}
}

func TestFrame_StandardIDMasksFlags(t *testing.T) {
	f := NewDataFrame(0x7FF, false, nil)
	if f.Extended() {
		t.Fatal("did not expect extended flag")
	}
	if f.ID() != 0x7FF {
		t.Fatalf("ID() = %#x, want 0x7FF", f.ID())
	}
}

func TestUnmarshal_ShortBuffer(t *testing.T) {
	var f Frame
	if err := Unmarshal(make([]byte, 4), &f); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestNewDataFrame_TruncatesOverlongPayload(t *testing.T) {
	f := NewDataFrame(1, false, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if f.Len != 8 {
		t.Fatalf("Len = %d, want 8", f.Len)
	}
}

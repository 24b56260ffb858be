package kcd

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/canlink/cankit/signal"
)

const exampleDoc = `<NetworkDefinition xmlns="http://kayak.2codeornot2code.org/1.0">
	<Bus name="Sample">
		<Message id="0x7" length="8" name="ExampleFrame" format="standard" interval="100">
			<Signal name="testsignal1" offset="56" length="1" endianess="little">
				<Value type="unsigned" slope="1" intercept="0"/>
			</Signal>
			<Signal name="testsignal2" offset="0" length="16" endianess="little">
				<Value type="unsigned" slope="0.1" intercept="0" unit="km/h"/>
			</Signal>
			<Signal name="testsignal3" offset="24" length="16" endianess="little">
				<Value type="unsigned" slope="1" intercept="0"/>
			</Signal>
			<Signal name="testsignal4" offset="59" length="4" endianess="big">
				<Value type="signed" slope="1" intercept="0" min="-8" max="7"/>
			</Signal>
			<Producer>
				<NodeRef id="ECU"/>
			</Producer>
		</Message>
	</Bus>
</NetworkDefinition>
`

func TestRead_ExampleDocument(t *testing.T) {
	cfg, err := Read(strings.NewReader(exampleDoc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f, ok := cfg.Frame(7)
	if !ok {
		t.Fatalf("frame 7 missing")
	}
	if f.Name != "ExampleFrame" || f.DLC != 8 || *f.CycleTimeMS != 100 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if len(f.Signals) != 4 {
		t.Fatalf("got %d signals, want 4", len(f.Signals))
	}
	if _, ok := f.ProducerNodeIDs["ECU"]; !ok {
		t.Fatalf("expected ECU producer")
	}

	_, sig2, err := cfg.FindSignal("testsignal2")
	if err != nil {
		t.Fatalf("FindSignal: %v", err)
	}
	if sig2.Unit != "km/h" || sig2.Definition.ScalingFactor != 0.1 {
		t.Fatalf("unexpected testsignal2: %+v", sig2)
	}

	_, sig4, err := cfg.FindSignal("testsignal4")
	if err != nil {
		t.Fatalf("FindSignal: %v", err)
	}
	if sig4.Definition.ByteOrder != signal.BigEndian || sig4.Definition.ValueType != signal.Signed {
		t.Fatalf("unexpected testsignal4: %+v", sig4)
	}
}

func TestRead_RejectsMultiplexedMessage(t *testing.T) {
	doc := `<NetworkDefinition xmlns="http://kayak.2codeornot2code.org/1.0">
		<Bus name="Sample">
			<Message id="0x1" length="8" name="Muxed" multiplex="1">
				<Signal name="s" offset="0" length="1"/>
			</Message>
		</Bus>
	</NetworkDefinition>`
	if _, err := Read(strings.NewReader(doc)); !errors.Is(err, ErrMultiplexed) {
		t.Fatalf("err = %v, want ErrMultiplexed", err)
	}
}

func TestRoundTrip_ReadWriteRead(t *testing.T) {
	first, err := Read(strings.NewReader(exampleDoc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, first); err != nil {
		t.Fatalf("Write: %v", err)
	}

	second, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read(written): %v\n%s", err, buf.String())
	}

	if second.BusName != first.BusName {
		t.Fatalf("bus name: got %q, want %q", second.BusName, first.BusName)
	}
	for _, id := range first.Frames() {
		wantFrame, _ := first.Frame(id)
		gotFrame, ok := second.Frame(id)
		if !ok {
			t.Fatalf("frame %#x missing after round-trip", id)
		}
		if gotFrame.Name != wantFrame.Name || gotFrame.DLC != wantFrame.DLC || gotFrame.Extended != wantFrame.Extended {
			t.Fatalf("frame %#x mismatch: got %+v, want %+v", id, gotFrame, wantFrame)
		}
		if len(gotFrame.Signals) != len(wantFrame.Signals) {
			t.Fatalf("frame %#x: got %d signals, want %d", id, len(gotFrame.Signals), len(wantFrame.Signals))
		}
		for i, wantSig := range wantFrame.Signals {
			gotSig := gotFrame.Signals[i]
			if gotSig.Name != wantSig.Name || !reflect.DeepEqual(gotSig.Definition, wantSig.Definition) {
				t.Fatalf("signal %q mismatch: got %+v, want %+v", wantSig.Name, gotSig.Definition, wantSig.Definition)
			}
		}
	}

	var buf2 bytes.Buffer
	if err := Write(&buf2, second); err != nil {
		t.Fatalf("Write(second): %v", err)
	}
	if buf.String() != buf2.String() {
		t.Fatalf("write is not a fixed point after one round-trip:\n--- first ---\n%s\n--- second ---\n%s", buf.String(), buf2.String())
	}
}

// Package kcd reads and writes the documented subset of the KCD XML format
// (namespace http://kayak.2codeornot2code.org/1.0) spec.md §4.3 enumerates,
// translating byte streams to and from an in-memory config.Configuration.
// Schema validation is an external concern; kcd is a pure translator.
package kcd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/canlink/cankit/config"
	"github.com/canlink/cankit/signal"
)

const namespace = "http://kayak.2codeornot2code.org/1.0"

type xmlDocument struct {
	XMLName xml.Name  `xml:"NetworkDefinition"`
	Buses   []xmlBus  `xml:"Bus"`
	Nodes   []xmlNode `xml:"Node"`
}

type xmlBus struct {
	Name     string       `xml:"name,attr"`
	Messages []xmlMessage `xml:"Message"`
}

type xmlNode struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type xmlMessage struct {
	ID        string       `xml:"id,attr"`
	Length    string       `xml:"length,attr"`
	Name      string       `xml:"name,attr"`
	Format    string       `xml:"format,attr"`
	Interval  string       `xml:"interval,attr"`
	Triggered string       `xml:"triggered,attr"`
	Count     string       `xml:"count,attr"`
	Multiplex string       `xml:"multiplex,attr"`
	Signals   []xmlSignal  `xml:"Signal"`
	Producer  *xmlProducer `xml:"Producer"`
}

type xmlSignal struct {
	Name      string    `xml:"name,attr"`
	Offset    string    `xml:"offset,attr"`
	Length    string    `xml:"length,attr"`
	Endianess string    `xml:"endianess,attr"`
	Value     *xmlValue `xml:"Value"`
	Notes     string    `xml:"Notes"`
}

type xmlValue struct {
	Type         string `xml:"type,attr"`
	Slope        string `xml:"slope,attr"`
	Intercept    string `xml:"intercept,attr"`
	Unit         string `xml:"unit,attr"`
	Min          string `xml:"min,attr"`
	Max          string `xml:"max,attr"`
	DefaultValue string `xml:"defaultValue,attr"`
}

type xmlProducer struct {
	NodeRefs []xmlNodeRef `xml:"NodeRef"`
}

type xmlNodeRef struct {
	ID string `xml:"id,attr"`
}

// Read parses a KCD document into a Configuration. Unsupported constructs
// are ignored except the "multiplex" Message attribute, which is a hard
// failure per spec.md §4.3.
func Read(r io.Reader) (*config.Configuration, error) {
	var doc xmlDocument
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}

	busName := ""
	if len(doc.Buses) > 0 {
		busName = doc.Buses[0].Name
	}
	cfg := config.New(busName)

	for _, bus := range doc.Buses {
		for _, msg := range bus.Messages {
			f, err := decodeFrame(msg)
			if err != nil {
				return nil, err
			}
			if err := cfg.AddFrame(f); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

func decodeFrame(msg xmlMessage) (config.Frame, error) {
	if strings.TrimSpace(msg.Multiplex) != "" {
		return config.Frame{}, fmt.Errorf("%w: message %q", ErrMultiplexed, msg.Name)
	}
	id, err := parseHexID(msg.ID)
	if err != nil {
		return config.Frame{}, fmt.Errorf("%w: message id %q: %v", ErrBadAttribute, msg.ID, err)
	}
	dlc, err := strconv.Atoi(strings.TrimSpace(msg.Length))
	if err != nil {
		return config.Frame{}, fmt.Errorf("%w: message length %q: %v", ErrBadAttribute, msg.Length, err)
	}
	extended := msg.Format == "extended"

	f := config.Frame{
		ID:              id,
		Extended:        extended,
		DLC:             dlc,
		Name:            msg.Name,
		ProducerNodeIDs: map[string]struct{}{},
	}
	if msg.Interval != "" {
		interval, err := strconv.Atoi(strings.TrimSpace(msg.Interval))
		if err != nil {
			return config.Frame{}, fmt.Errorf("%w: message interval %q: %v", ErrBadAttribute, msg.Interval, err)
		}
		f.CycleTimeMS = &interval
	}
	if msg.Producer != nil {
		for _, ref := range msg.Producer.NodeRefs {
			f.ProducerNodeIDs[ref.ID] = struct{}{}
		}
	}
	for _, sigXML := range msg.Signals {
		sig, err := decodeSignal(sigXML)
		if err != nil {
			return config.Frame{}, fmt.Errorf("message %q: %w", msg.Name, err)
		}
		f.Signals = append(f.Signals, sig)
	}
	return f, nil
}

func decodeSignal(s xmlSignal) (config.Signal, error) {
	offset, err := strconv.Atoi(strings.TrimSpace(s.Offset))
	if err != nil {
		return config.Signal{}, fmt.Errorf("%w: signal %q offset %q: %v", ErrBadAttribute, s.Name, s.Offset, err)
	}
	length := 1
	if strings.TrimSpace(s.Length) != "" {
		length, err = strconv.Atoi(strings.TrimSpace(s.Length))
		if err != nil {
			return config.Signal{}, fmt.Errorf("%w: signal %q length %q: %v", ErrBadAttribute, s.Name, s.Length, err)
		}
	}
	order := signal.LittleEndian
	if s.Endianess == "big" {
		order = signal.BigEndian
	}

	def := signal.Definition{
		StartBit:      offset,
		NumBits:       length,
		ByteOrder:     order,
		ScalingFactor: 1,
	}
	out := config.Signal{Name: s.Name, Description: strings.TrimSpace(s.Notes)}

	if s.Value != nil {
		v := s.Value
		if v.Type == "signed" {
			def.ValueType = signal.Signed
		}
		if strings.TrimSpace(v.Slope) != "" {
			slope, err := strconv.ParseFloat(strings.TrimSpace(v.Slope), 64)
			if err != nil {
				return config.Signal{}, fmt.Errorf("%w: signal %q slope %q: %v", ErrBadAttribute, s.Name, v.Slope, err)
			}
			def.ScalingFactor = slope
		}
		if strings.TrimSpace(v.Intercept) != "" {
			intercept, err := strconv.ParseFloat(strings.TrimSpace(v.Intercept), 64)
			if err != nil {
				return config.Signal{}, fmt.Errorf("%w: signal %q intercept %q: %v", ErrBadAttribute, s.Name, v.Intercept, err)
			}
			def.ValueOffset = intercept
		}
		out.Unit = v.Unit
		if strings.TrimSpace(v.Min) != "" {
			min, err := strconv.ParseFloat(strings.TrimSpace(v.Min), 64)
			if err != nil {
				return config.Signal{}, fmt.Errorf("%w: signal %q min %q: %v", ErrBadAttribute, s.Name, v.Min, err)
			}
			def.MinValue = &min
		}
		if strings.TrimSpace(v.Max) != "" {
			max, err := strconv.ParseFloat(strings.TrimSpace(v.Max), 64)
			if err != nil {
				return config.Signal{}, fmt.Errorf("%w: signal %q max %q: %v", ErrBadAttribute, s.Name, v.Max, err)
			}
			def.MaxValue = &max
		}
		if strings.TrimSpace(v.DefaultValue) != "" {
			defaultVal, err := strconv.ParseFloat(strings.TrimSpace(v.DefaultValue), 64)
			if err != nil {
				return config.Signal{}, fmt.Errorf("%w: signal %q defaultValue %q: %v", ErrBadAttribute, s.Name, v.DefaultValue, err)
			}
			out.DefaultValue = defaultVal
		}
	}
	out.Definition = def
	return out, nil
}

func parseHexID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

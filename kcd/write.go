package kcd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/canlink/cankit/config"
	"github.com/canlink/cankit/signal"
)

// Write emits cfg as a KCD document with canonical indentation (one tab per
// nesting level) and attribute ordering, so that Read(Write(Read(d))) is a
// fixed point for any document d in the supported subset (spec.md §4.3,
// §8 invariant 5).
func Write(w io.Writer, cfg *config.Configuration) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "<NetworkDefinition xmlns=%q>\n", namespace)
	fmt.Fprintf(b, "\t<Bus name=\"%s\">\n", escapeAttr(cfg.BusName))
	for _, id := range cfg.Frames() {
		f, _ := cfg.Frame(id)
		writeMessage(b, f)
	}
	b.WriteString("\t</Bus>\n")
	b.WriteString("</NetworkDefinition>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMessage(b *strings.Builder, f config.Frame) {
	format := "standard"
	if f.Extended {
		format = "extended"
	}
	fmt.Fprintf(b, "\t\t<Message id=%q length=%q name=\"%s\" format=%q", hexID(f.ID), strconv.Itoa(f.DLC), escapeAttr(f.Name), format)
	if f.CycleTimeMS != nil {
		fmt.Fprintf(b, " interval=%q", strconv.Itoa(*f.CycleTimeMS))
	}
	b.WriteString(">\n")

	for _, s := range f.Signals {
		writeSignal(b, s)
	}
	if len(f.ProducerNodeIDs) > 0 {
		b.WriteString("\t\t\t<Producer>\n")
		for _, id := range sortedKeys(f.ProducerNodeIDs) {
			fmt.Fprintf(b, "\t\t\t\t<NodeRef id=\"%s\"/>\n", escapeAttr(id))
		}
		b.WriteString("\t\t\t</Producer>\n")
	}
	b.WriteString("\t\t</Message>\n")
}

func writeSignal(b *strings.Builder, s config.Signal) {
	endianess := "little"
	if s.Definition.ByteOrder == signal.BigEndian {
		endianess = "big"
	}
	fmt.Fprintf(b, "\t\t\t<Signal name=\"%s\" offset=%q length=%q endianess=%q>\n",
		escapeAttr(s.Name), strconv.Itoa(s.Definition.StartBit), strconv.Itoa(s.Definition.NumBits), endianess)

	valueType := "unsigned"
	if s.Definition.ValueType == signal.Signed {
		valueType = "signed"
	}
	fmt.Fprintf(b, "\t\t\t\t<Value type=%q slope=%s intercept=%s",
		valueType, formatFloat(s.Definition.ScalingFactor), formatFloat(s.Definition.ValueOffset))
	if s.Unit != "" {
		fmt.Fprintf(b, " unit=\"%s\"", escapeAttr(s.Unit))
	}
	if s.Definition.MinValue != nil {
		fmt.Fprintf(b, " min=%s", formatFloat(*s.Definition.MinValue))
	}
	if s.Definition.MaxValue != nil {
		fmt.Fprintf(b, " max=%s", formatFloat(*s.Definition.MaxValue))
	}
	if s.DefaultValue != 0 {
		fmt.Fprintf(b, " defaultValue=%s", formatFloat(s.DefaultValue))
	}
	b.WriteString("/>\n")

	if s.Description != "" {
		fmt.Fprintf(b, "\t\t\t\t<Notes>%s</Notes>\n", escapeText(s.Description))
	}
	b.WriteString("\t\t\t</Signal>\n")
}

func hexID(id uint32) string { return fmt.Sprintf("0x%X", id) }

func formatFloat(f float64) string {
	return strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64))
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	return r.Replace(s)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

package config

import (
	"fmt"
	"strings"

	"github.com/canlink/cankit/signal"
)

// columnOrder lists, in display order, the normal bit index shown in each
// column of the rulers: byte 0..7, each byte's bits printed MSB-first (bit 7
// down to bit 0), matching how a hex dump of the payload reads left to
// right.
func columnOrder() []int {
	cols := make([]int, 0, 64)
	for b := 0; b < 8; b++ {
		for bit := 7; bit >= 0; bit-- {
			cols = append(cols, 8*b+bit)
		}
	}
	return cols
}

// DescriptiveASCIIArt renders a human-readable, multi-line summary of every
// frame and its signals: a one-line frame header, then per signal a normal
// bit-index ruler, a payload row marking the signal's span with M
// (most-significant bit), L (least-significant bit), and X (other occupied
// bits), and a backward bit-index ruler (spec.md §6). The format is stable
// across calls given the same Configuration.
func (c *Configuration) DescriptiveASCIIArt() string {
	var b strings.Builder
	cols := columnOrder()

	fmt.Fprintf(&b, "Bus: %s\n", c.BusName)
	for _, id := range c.Frames() {
		f := c.frames[id]
		fmt.Fprintf(&b, "\nFrame %#03x %q dlc=%d\n", f.ID, f.Name, f.DLC)
		for _, s := range f.Signals {
			writeSignalDiagram(&b, s, cols)
		}
	}
	return b.String()
}

func writeSignalDiagram(b *strings.Builder, s Signal, cols []int) {
	occupied, err := s.Definition.OccupiedBits()
	if err != nil {
		fmt.Fprintf(b, "  %s: <invalid: %v>\n", s.Name, err)
		return
	}
	lsb, msb := occupied[0], occupied[len(occupied)-1]
	occupiedSet := make(map[int]struct{}, len(occupied))
	for _, n := range occupied {
		occupiedSet[n] = struct{}{}
	}

	fmt.Fprintf(b, "  %s (%s, %s, %d bit(s), start=%d)\n", s.Name, s.Definition.ByteOrder, s.Definition.ValueType, s.Definition.NumBits, s.Definition.StartBit)

	var normalRuler, payloadRow, backwardRuler strings.Builder
	for _, n := range cols {
		fmt.Fprintf(&normalRuler, "%2d ", n)
		switch {
		case n == msb:
			payloadRow.WriteString(" M ")
		case n == lsb:
			payloadRow.WriteString(" L ")
		default:
			if _, ok := occupiedSet[n]; ok {
				payloadRow.WriteString(" X ")
			} else {
				payloadRow.WriteString(" . ")
			}
		}
		fmt.Fprintf(&backwardRuler, "%2d ", signal.BackwardBitIndex(n))
	}
	fmt.Fprintf(b, "    normal:   %s\n", normalRuler.String())
	fmt.Fprintf(b, "    payload:  %s\n", payloadRow.String())
	fmt.Fprintf(b, "    backward: %s\n", backwardRuler.String())
}

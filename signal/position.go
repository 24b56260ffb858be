package signal

import "fmt"

// bitPos identifies one bit of an 8-byte payload in normal ("sawtooth")
// numbering: normal index = 8*byteIdx + bitIdx.
type bitPos struct {
	byteIdx int
	bitIdx  int
}

// normalIndex returns the spec.md §4.1 "normal" bit index of p.
func (p bitPos) normalIndex() int { return 8*p.byteIdx + p.bitIdx }

// backwardIndex returns the spec.md §4.1 "backward" (MSB0/DBC) bit index
// corresponding to p's normal index.
func backwardIndex(normal int) int {
	return ((7 - normal/8) * 8) + (normal % 8)
}

// bitPositions enumerates, from the signal's least-significant bit (index 0
// of the returned slice) to its most significant, the payload bit each of
// the signal's num_bits occupies.
//
// Little-endian: consecutive normal bit positions starting at start_bit.
// Big-endian: starting at start_bit, each more-significant bit advances the
// bit-in-byte index; on overflow past bit 7 the byte index decreases by one
// and the bit-in-byte index resets to 0 (spec.md §4.1).
func bitPositions(startBit, numBits int, order ByteOrder) ([]bitPos, error) {
	if numBits < 1 || numBits > 64 {
		return nil, fmt.Errorf("%w: got %d", ErrNumBitsRange, numBits)
	}
	if startBit < 0 || startBit > 63 {
		return nil, fmt.Errorf("%w: start_bit %d out of 0..63", ErrBitSpanOverflow, startBit)
	}
	positions := make([]bitPos, numBits)
	switch order {
	case BigEndian:
		byteIdx := startBit / 8
		bitIdx := startBit % 8
		for i := 0; i < numBits; i++ {
			if byteIdx < 0 {
				return nil, fmt.Errorf("%w: big-endian signal at start_bit=%d num_bits=%d underflows byte 0", ErrBitSpanOverflow, startBit, numBits)
			}
			positions[i] = bitPos{byteIdx, bitIdx}
			bitIdx++
			if bitIdx > 7 {
				bitIdx = 0
				byteIdx--
			}
		}
	default: // LittleEndian
		if startBit+numBits > 64 {
			return nil, fmt.Errorf("%w: start_bit=%d num_bits=%d", ErrBitSpanOverflow, startBit, numBits)
		}
		for i := 0; i < numBits; i++ {
			n := startBit + i
			positions[i] = bitPos{n / 8, n % 8}
		}
	}
	return positions, nil
}

// OccupiedBits returns the normal bit index of each bit the signal
// occupies, ordered from least to most significant. It is exported for
// config.DescriptiveASCIIArt's bit-layout diagram (spec.md §6).
func (d Definition) OccupiedBits() ([]int, error) {
	positions, err := bitPositions(d.StartBit, d.NumBits, d.ByteOrder)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(positions))
	for i, p := range positions {
		indices[i] = p.normalIndex()
	}
	return indices, nil
}

// BackwardBitIndex converts a normal bit index to the backward (MSB0/DBC)
// index, exported for the same ASCII-art diagram.
func BackwardBitIndex(normal int) int { return backwardIndex(normal) }

// extractRaw reads numBits bits from payload at positions, least-significant
// first, into the low bits of the returned uint64.
func extractRaw(payload [8]byte, positions []bitPos) uint64 {
	var raw uint64
	for i, p := range positions {
		bit := (payload[p.byteIdx] >> uint(p.bitIdx)) & 1
		raw |= uint64(bit) << uint(i)
	}
	return raw
}

// depositRaw writes the low len(positions) bits of raw into payload at
// positions, setting or clearing each bit individually so that bits
// belonging to other signals are left untouched regardless of whether this
// signal's new value has 1s where its old value had 0s (a plain OR-merge,
// as spec.md §4.1 step 5 describes, cannot clear a previously-set bit).
func depositRaw(payload *[8]byte, positions []bitPos, raw uint64) {
	for i, p := range positions {
		mask := byte(1) << uint(p.bitIdx)
		if (raw>>uint(i))&1 != 0 {
			payload[p.byteIdx] |= mask
		} else {
			payload[p.byteIdx] &^= mask
		}
	}
}

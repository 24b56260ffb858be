package signal

import "math"

// EncodeRaw packs a pre-scaled integer raw value (already clamped to the
// representable range of d's geometry by the caller, typically via Encode)
// into payload at d's bit positions. It is exported for the bit-exact
// round-trip property tests (spec.md §8 invariant 3) that operate below the
// scaling pipeline.
func (d Definition) EncodeRaw(payload *[8]byte, raw uint64) error {
	positions, err := bitPositions(d.StartBit, d.NumBits, d.ByteOrder)
	if err != nil {
		return err
	}
	mask := rawMask(d.NumBits)
	depositRaw(payload, positions, raw&mask)
	return nil
}

// DecodeRaw extracts d's raw bits from payload without sign-extension or
// scaling.
func (d Definition) DecodeRaw(payload [8]byte) (uint64, error) {
	positions, err := bitPositions(d.StartBit, d.NumBits, d.ByteOrder)
	if err != nil {
		return 0, err
	}
	return extractRaw(payload, positions), nil
}

// rawMask returns a mask with the low numBits bits set (all 64 bits for
// numBits==64, where a left shift by 64 would be undefined).
func rawMask(numBits int) uint64 {
	if numBits >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << uint(numBits)) - 1
}

// rawRange returns the representable [min, max] of a numBits-wide value of
// the given ValueType, as float64 (exact for numBits <= 53; CAN signals
// never exceed 64 bits so this only loses precision at the extreme ends of
// 64-bit unsigned/signed ranges, which clamping tolerates).
func rawRange(numBits int, vt ValueType) (min, max float64) {
	if vt == Unsigned {
		return 0, float64(rawMask(numBits))
	}
	half := math.Exp2(float64(numBits - 1))
	return -half, half - 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Encode implements spec.md §4.1's encoding pipeline: clamp the physical
// input, scale to a raw integer, clamp to the representable range, encode
// two's complement for signed, and deposit into payload.
//
// If strict is true and the scaled value needed clamping to the
// representable range, Encode returns ErrOutOfRange instead of silently
// clamping (spec.md §7: "CodecError — numeric out-of-range when strict mode
// is requested (default mode clamps silently)").
func (d Definition) Encode(payload *[8]byte, physical float64, strict bool) error {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return err
	}
	if d.MinValue != nil || d.MaxValue != nil {
		lo, hi := boundsOrInf(d.MinValue, d.MaxValue)
		physical = clamp(physical, lo, hi)
	}
	scaled := (physical - d.ValueOffset) / d.ScalingFactor
	raw := math.Round(scaled)

	lo, hi := rawRange(d.NumBits, d.ValueType)
	clamped := clamp(raw, lo, hi)
	if strict && clamped != raw {
		return ErrOutOfRange
	}
	raw = clamped

	var bits uint64
	if d.ValueType == Signed {
		bits = uint64(int64(raw)) & rawMask(d.NumBits)
	} else {
		bits = uint64(raw)
	}
	return d.EncodeRaw(payload, bits)
}

// Decode implements spec.md §4.1's decoding pipeline: extract raw bits,
// sign-extend for signed, apply scaling and offset, then clamp to the
// configured physical bounds.
func (d Definition) Decode(payload [8]byte) (float64, error) {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return 0, err
	}
	bits, err := d.DecodeRaw(payload)
	if err != nil {
		return 0, err
	}

	var raw float64
	if d.ValueType == Signed {
		raw = float64(signExtend(bits, d.NumBits))
	} else {
		raw = float64(bits)
	}

	physical := raw*d.ScalingFactor + d.ValueOffset
	if d.MinValue != nil || d.MaxValue != nil {
		lo, hi := boundsOrInf(d.MinValue, d.MaxValue)
		physical = clamp(physical, lo, hi)
	}
	return physical, nil
}

// signExtend interprets the low numBits bits of raw as two's complement.
func signExtend(raw uint64, numBits int) int64 {
	if numBits >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << uint(numBits-1)
	if raw&signBit != 0 {
		return int64(raw | (^uint64(0) << uint(numBits)))
	}
	return int64(raw)
}

func boundsOrInf(min, max *float64) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	return lo, hi
}

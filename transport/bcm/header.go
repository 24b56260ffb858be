package bcm

import (
	"encoding/binary"
	"fmt"
)

// BCM opcodes (linux/can/bcm.h), spec.md §4.5.
const (
	OpTxSetup  uint32 = 1
	OpTxDelete uint32 = 2
	OpTxSend   uint32 = 4
	OpRxSetup  uint32 = 5
	OpRxDelete uint32 = 6
)

// BCM flags (linux/can/bcm.h), the subset this package defines. The
// transport itself issues only FlagSetTimer and FlagStartTimer.
const (
	FlagSetTimer   uint32 = 0x0001
	FlagStartTimer uint32 = 0x0002
	FlagRxFilterID uint32 = 0x0020
)

// Timeval mirrors the kernel's struct timeval inside a BCM header: two
// platform `long` fields, encoded at longWidth bytes each.
type Timeval struct {
	Sec  int64
	Usec int64
}

// Header is struct bcm_msg_head (linux/can/bcm.h), in field order:
// opcode, flags, count, ival1, ival2, frame_id (can_id with flag bits),
// nframes. Encoded with native byte order and native `long` width/
// alignment per spec.md §4.5.
type Header struct {
	Opcode  uint32
	Flags   uint32
	Count   uint32
	Ival1   Timeval
	Ival2   Timeval
	FrameID uint32
	Nframes uint32
}

// headerSize is computed once from longWidth, matching the real kernel
// struct bcm_msg_head size for the platform (56 bytes on 64-bit long,
// 40 bytes on 32-bit long).
var headerSize = computeHeaderSize(longWidth)

// computeHeaderSize derives struct bcm_msg_head's size for an arbitrary
// `long` width: opcode/flags/count (12 bytes) aligned up to longWidth
// before ival1/ival2 (each two longWidth-wide fields), followed by
// frame_id/nframes (8 bytes), with the whole header padded up to an
// 8-byte boundary since CAN frames follow immediately after it.
func computeHeaderSize(longWidth int) int {
	prefix := 12
	padBeforeIval := (longWidth - prefix%longWidth) % longWidth
	offset := prefix + padBeforeIval
	offset += 2 * 2 * longWidth // ival1, ival2: sec+usec each
	offset += 8                 // frame_id, nframes
	trailingPad := (8 - offset%8) % 8
	return offset + trailingPad
}

func ivalOffset() int {
	prefix := 12
	return prefix + (longWidth-prefix%longWidth)%longWidth
}

// Marshal encodes h into a headerSize-byte buffer using native byte order
// and this platform's `long` width.
func (h Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	binary.NativeEndian.PutUint32(buf[0:4], h.Opcode)
	binary.NativeEndian.PutUint32(buf[4:8], h.Flags)
	binary.NativeEndian.PutUint32(buf[8:12], h.Count)

	off := ivalOffset()
	off = putTimeval(buf, off, h.Ival1)
	off = putTimeval(buf, off, h.Ival2)

	binary.NativeEndian.PutUint32(buf[off:off+4], h.FrameID)
	binary.NativeEndian.PutUint32(buf[off+4:off+8], h.Nframes)
	return buf
}

// UnmarshalHeader decodes a BCM header from buf, which must be at least
// headerSize bytes, returning the number of bytes consumed.
func UnmarshalHeader(buf []byte) (Header, int, error) {
	if len(buf) < headerSize {
		return Header{}, 0, fmt.Errorf("bcm: need %d header bytes, got %d", headerSize, len(buf))
	}
	var h Header
	h.Opcode = binary.NativeEndian.Uint32(buf[0:4])
	h.Flags = binary.NativeEndian.Uint32(buf[4:8])
	h.Count = binary.NativeEndian.Uint32(buf[8:12])

	off := ivalOffset()
	h.Ival1, off = getTimeval(buf, off)
	h.Ival2, off = getTimeval(buf, off)

	h.FrameID = binary.NativeEndian.Uint32(buf[off : off+4])
	h.Nframes = binary.NativeEndian.Uint32(buf[off+4 : off+8])
	return h, headerSize, nil
}

func putTimeval(buf []byte, off int, tv Timeval) int {
	if longWidth == 8 {
		binary.NativeEndian.PutUint64(buf[off:off+8], uint64(tv.Sec))
		binary.NativeEndian.PutUint64(buf[off+8:off+16], uint64(tv.Usec))
		return off + 16
	}
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(tv.Sec))
	binary.NativeEndian.PutUint32(buf[off+4:off+8], uint32(tv.Usec))
	return off + 8
}

func getTimeval(buf []byte, off int) (Timeval, int) {
	if longWidth == 8 {
		tv := Timeval{
			Sec:  int64(binary.NativeEndian.Uint64(buf[off : off+8])),
			Usec: int64(binary.NativeEndian.Uint64(buf[off+8 : off+16])),
		}
		return tv, off + 16
	}
	tv := Timeval{
		Sec:  int64(int32(binary.NativeEndian.Uint32(buf[off : off+4]))),
		Usec: int64(int32(binary.NativeEndian.Uint32(buf[off+4 : off+8]))),
	}
	return tv, off + 8
}

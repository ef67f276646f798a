// Package record defines the unit stored in the log stores and carried by the
// relay queue, together with its binary encoding.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

const (
	magic = 0x4C525231 // "LRR1"

	// HeaderSize is the fixed encoded size preceding the payload:
	// magic(4) + length(4) + crc(4) + seq(8) + count(8) + timestamp(8).
	HeaderSize = 36

	// MaxPayloadSize bounds a single record payload.
	MaxPayloadSize = 64 << 20
)

var (
	// ErrShortBuffer means the buffer ends before the record does. At the
	// tail of a file it marks a torn write.
	ErrShortBuffer = errors.New("record: short buffer")
	// ErrBadMagic means the buffer does not start with a record header.
	ErrBadMagic = errors.New("record: bad magic")
	// ErrChecksum means the record was modified after encoding.
	ErrChecksum = errors.New("record: checksum mismatch")
	// ErrTooLarge is returned for payloads above MaxPayloadSize.
	ErrTooLarge = errors.New("record: payload too large")

	crc32Table = crc32.MakeTable(crc32.Castagnoli)
)

// Record covers the sequence range [Seq, Seq+Count). A record normally holds
// one logical entry; Count greater than one lets a producer collapse a run of
// entries into a single payload.
type Record struct {
	Seq       uint64
	Count     uint64
	Timestamp time.Time
	Payload   []byte
}

// New returns a single-entry record stamped with the current time.
func New(seq uint64, payload []byte) Record {
	return Record{Seq: seq, Count: 1, Timestamp: time.Now(), Payload: payload}
}

// RangeStart returns the first sequence covered by the record.
func (r Record) RangeStart() uint64 { return r.Seq }

// RangeEnd returns the sequence following the record.
func (r Record) RangeEnd() uint64 { return r.Seq + r.span() }

func (r Record) span() uint64 {
	if r.Count == 0 {
		return 1
	}
	return r.Count
}

func (r Record) String() string {
	return fmt.Sprintf("record[%d,%d) %dB", r.Seq, r.RangeEnd(), len(r.Payload))
}

// EncodedSize returns the number of bytes Encode produces for r.
func (r Record) EncodedSize() int {
	return HeaderSize + len(r.Payload)
}

// Encode appends the binary form of r to dst.
func Encode(dst []byte, r Record) ([]byte, error) {
	if len(r.Payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(r.Payload))
	}

	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	dst = append(dst, r.Payload...)

	b := dst[start:]
	binary.LittleEndian.PutUint32(b[0:4], magic)
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(r.Payload)))
	binary.LittleEndian.PutUint64(b[12:20], r.Seq)
	binary.LittleEndian.PutUint64(b[20:28], r.span())
	var ts int64
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.UnixNano()
	}
	binary.LittleEndian.PutUint64(b[28:36], uint64(ts))
	binary.LittleEndian.PutUint32(b[8:12], crc32.Checksum(b[12:], crc32Table))
	return dst, nil
}

// Decode reads one record from the front of b and returns it with the
// number of bytes consumed. The returned payload aliases b.
func Decode(b []byte) (Record, int, error) {
	if len(b) < HeaderSize {
		return Record{}, 0, ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(b[0:4]) != magic {
		return Record{}, 0, ErrBadMagic
	}
	length := int(binary.LittleEndian.Uint32(b[4:8]))
	if length > MaxPayloadSize {
		return Record{}, 0, fmt.Errorf("%w: header claims %d bytes", ErrTooLarge, length)
	}
	n := HeaderSize + length
	if len(b) < n {
		return Record{}, 0, ErrShortBuffer
	}
	if crc32.Checksum(b[12:n], crc32Table) != binary.LittleEndian.Uint32(b[8:12]) {
		return Record{}, 0, ErrChecksum
	}

	r := Record{
		Seq:     binary.LittleEndian.Uint64(b[12:20]),
		Count:   binary.LittleEndian.Uint64(b[20:28]),
		Payload: b[HeaderSize:n],
	}
	if ts := int64(binary.LittleEndian.Uint64(b[28:36])); ts != 0 {
		r.Timestamp = time.Unix(0, ts)
	}
	return r, n, nil
}

// Clone returns a copy of r that does not alias the decode buffer.
func (r Record) Clone() Record {
	if r.Payload != nil {
		r.Payload = append([]byte(nil), r.Payload...)
	}
	return r
}

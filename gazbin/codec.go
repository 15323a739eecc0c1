package gazbin

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder appends varint-encoded values to a growing byte buffer.
// Sections of the cache (pools, trie) are written through an Encoder and
// the resulting body is handed to Write or WriteFile.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with an initial capacity hint.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, max(sizeHint, 64))}
}

// Byte appends a single raw byte, used for tags.
func (e *Encoder) Byte(b byte) {
	e.buf = append(e.buf, b)
}

// Uvarint appends v as an unsigned varint.
func (e *Encoder) Uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// Int appends a non-negative int as an unsigned varint.
func (e *Encoder) Int(v int) {
	if v < 0 {
		panic(fmt.Sprintf("gazbin: negative value %d cannot be encoded", v))
	}
	e.buf = binary.AppendUvarint(e.buf, uint64(v))
}

// Bytes appends b, prefixed with its length.
func (e *Encoder) Bytes(b []byte) {
	e.Int(len(b))
	e.buf = append(e.buf, b...)
}

// String appends s, prefixed with its length in bytes.
func (e *Encoder) String(s string) {
	e.Int(len(s))
	e.buf = append(e.buf, s...)
}

// Data returns the encoded bytes. The slice aliases the encoder's buffer.
func (e *Encoder) Data() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// ---------------------------------------------------------------------------

// Decoder reads values written by an Encoder. Errors are sticky: after the
// first failure every read returns a zero value and Err reports the cause.
type Decoder struct {
	data []byte
	pos  int
	err  error
}

// NewDecoder creates a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered, wrapped as ErrCacheFormat.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d", ErrCacheFormat, fmt.Sprintf(format, args...), d.pos)
	}
}

// Byte reads one raw byte.
func (d *Decoder) Byte() byte {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.data) {
		d.fail("unexpected end of data")
		return 0
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

// Uvarint reads an unsigned varint.
func (d *Decoder) Uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		d.fail("malformed varint")
		return 0
	}
	d.pos += n
	return v
}

// Uint32 reads a varint which has to fit into 32 bits.
func (d *Decoder) Uint32() uint32 {
	v := d.Uvarint()
	if v > math.MaxUint32 {
		d.fail("value %d overflows uint32", v)
		return 0
	}
	return uint32(v)
}

// Int reads a varint which has to fit into an int.
func (d *Decoder) Int() int {
	v := d.Uvarint()
	if v > math.MaxInt32 {
		d.fail("value %d out of range", v)
		return 0
	}
	return int(v)
}

// Count reads an element count. Every element occupies at least minSize
// bytes, so counts larger than the remaining data are rejected before any
// allocation happens.
func (d *Decoder) Count(minSize int) int {
	n := d.Int()
	if d.err != nil {
		return 0
	}
	if minSize > 0 && n > d.Remaining()/minSize {
		d.fail("element count %d exceeds remaining data", n)
		return 0
	}
	return n
}

// Bytes reads a length-prefixed byte slice. The result aliases the
// decoder's input.
func (d *Decoder) Bytes() []byte {
	n := d.Count(1)
	if d.err != nil {
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

// String reads a length-prefixed string.
func (d *Decoder) String() string {
	return string(d.Bytes())
}

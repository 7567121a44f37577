// Package hazel implements the primitive wire types of the game protocol and
// the framed sub-messages every higher layer is built from.
//
// A frame is laid out as
//
//	length uint16 (little endian, payload only)
//	tag    uint8
//	payload [length]byte
//
// and frames nest arbitrarily.
package hazel

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/blukai/skeldparty/internal/byteorder"
)

var (
	// ErrUnexpectedEOF is what every truncated read eventually wraps.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF

	ErrVarintOverflow = errors.New("hazel: packed integer overflows 32 bits")
)

// Reader is a cursor over an immutable byte span.
//
// Reads are sticky: the first failure is recorded, every read after it
// returns a zero value, and Err reports the failure. Decoders read all fields
// and check Err once.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Err() error {
	return r.err
}

// Left is the number of unread bytes.
func (r *Reader) Left() int {
	return len(r.buf) - r.pos
}

func (r *Reader) Pos() int {
	return r.pos
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Count reads an upacked element count and checks that that many elements
// of at least size bytes each fit in what is left. A count that cannot fit
// fails the reader and comes back as 0, so callers may allocate up front.
func (r *Reader) Count(size int) int {
	n := r.Upacked()
	if r.err != nil {
		return 0
	}
	if size > 0 && uint64(n)*uint64(size) > uint64(r.Left()) {
		r.fail(fmt.Errorf("hazel: %d elements of %d bytes at offset %d (%d left): %w", n, size, r.pos, r.Left(), ErrUnexpectedEOF))
		return 0
	}
	return int(n)
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Left() {
		r.fail(fmt.Errorf("hazel: read %d bytes at offset %d (%d left): %w", n, r.pos, r.Left(), ErrUnexpectedEOF))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 {
	return int8(r.Uint8())
}

func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return byteorder.Les(b)
}

// Uint16BE reads a network order uint16. The only big endian values on the
// wire are packet nonces.
func (r *Reader) Uint16BE() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return byteorder.Ntohs(b)
}

func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return byteorder.Lel(b)
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// Upacked reads a 7-bit-per-byte variable length unsigned integer; the high
// bit of each byte means more bytes follow.
func (r *Reader) Upacked() uint32 {
	var out uint32
	for shift := uint(0); ; shift += 7 {
		if shift >= 35 {
			r.fail(ErrVarintOverflow)
			return 0
		}
		b := r.Uint8()
		if r.err != nil {
			return 0
		}
		out |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return out
		}
	}
}

// Packed reads a signed packed integer. Signed values are the two's
// complement bits of the unsigned encoding (no zigzag), so negative numbers
// always take five bytes.
func (r *Reader) Packed() int32 {
	return int32(r.Upacked())
}

func (r *Reader) Str() string {
	n := r.Upacked()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(r.Left()) {
		r.fail(fmt.Errorf("hazel: string of %d bytes at offset %d (%d left): %w", n, r.pos, r.Left(), ErrUnexpectedEOF))
		return ""
	}
	return string(r.take(int(n)))
}

// Bytes returns the next n bytes. The slice aliases the reader's buffer.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// BytesAndSize reads an upacked length followed by that many bytes.
func (r *Reader) BytesAndSize() []byte {
	n := r.Upacked()
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(r.Left()) {
		r.fail(fmt.Errorf("hazel: %d sized bytes at offset %d (%d left): %w", n, r.pos, r.Left(), ErrUnexpectedEOF))
		return nil
	}
	return r.take(int(n))
}

// Rest returns every unread byte and leaves the reader at its end.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	return r.take(r.Left())
}

// Vector2 reads two uint16 values, each a position quantized over
// [VectorMin, VectorMax].
func (r *Reader) Vector2() Vector2 {
	x := r.Uint16()
	y := r.Uint16()
	return Vector2{X: unquantize(x), Y: unquantize(y)}
}

// Message reads one frame. The returned sub-reader is bounded by the frame's
// length, so a caller that fails to decode the payload can still carry on with
// the next sibling frame. On truncation the sub-reader carries the same error.
func (r *Reader) Message() (uint8, *Reader) {
	length := r.Uint16()
	tag := r.Uint8()
	payload := r.take(int(length))
	if r.err != nil {
		return tag, &Reader{err: r.err}
	}
	return tag, NewReader(payload)
}

package hazel

import (
	"math"

	"github.com/blukai/skeldparty/internal/byteorder"
	"github.com/blukai/skeldparty/internal/debug"
)

// Writer grows an output buffer. Begin/End bracket a frame: Begin writes a
// placeholder length and the tag, End patches the length once the body is
// known.
type Writer struct {
	buf    []byte
	frames []int
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded bytes. All frames must be closed.
func (w *Writer) Bytes() []byte {
	debug.Assertf(len(w.frames) == 0, "%d unclosed frames", len(w.frames))
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Int8(v int8) {
	w.Uint8(uint8(v))
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Uint16(v uint16) {
	w.buf = byteorder.AppendLes(w.buf, v)
}

func (w *Writer) Uint16BE(v uint16) {
	w.buf = byteorder.AppendHtons(w.buf, v)
}

func (w *Writer) Int16(v int16) {
	w.Uint16(uint16(v))
}

func (w *Writer) Uint32(v uint32) {
	w.buf = byteorder.AppendLel(w.buf, v)
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

func (w *Writer) Upacked(v uint32) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

func (w *Writer) Packed(v int32) {
	w.Upacked(uint32(v))
}

func (w *Writer) Str(s string) {
	w.Upacked(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Write appends raw bytes.
func (w *Writer) Write(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) BytesAndSize(b []byte) {
	w.Upacked(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) Vector2(v Vector2) {
	w.Uint16(quantize(v.X))
	w.Uint16(quantize(v.Y))
}

func (w *Writer) Begin(tag uint8) {
	w.frames = append(w.frames, len(w.buf))
	w.buf = append(w.buf, 0, 0, tag)
}

func (w *Writer) End() {
	debug.Assert(len(w.frames) > 0, "end without begin")

	start := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]

	size := len(w.buf) - start - 3
	debug.Assertf(size <= math.MaxUint16, "frame of %d bytes does not fit uint16", size)
	byteorder.PutLes(w.buf[start:], uint16(size))
}

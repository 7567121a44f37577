package hazel_test

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/matryer/is"
)

func TestPackedEncoding(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		value uint32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tc := range testCases {
		w := hazel.NewWriter()
		w.Upacked(tc.value)
		is.Equal(w.Bytes(), tc.bytes)

		r := hazel.NewReader(tc.bytes)
		is.Equal(r.Upacked(), tc.value)
		is.NoErr(r.Err())
		is.Equal(r.Left(), 0)
	}
}

func TestSignedPackedHasNoZigZag(t *testing.T) {
	is := is.New(t)

	w := hazel.NewWriter()
	w.Packed(-1)
	is.Equal(w.Bytes(), []byte{0xff, 0xff, 0xff, 0xff, 0x0f})

	r := hazel.NewReader(w.Bytes())
	is.Equal(r.Packed(), int32(-1))
	is.NoErr(r.Err())
}

func TestPrimitives(t *testing.T) {
	is := is.New(t)

	w := hazel.NewWriter()
	w.Uint8(0xab)
	w.Bool(true)
	w.Uint16(0x0102)
	w.Uint16BE(0x0102)
	w.Int32(-42)
	w.Float32(1.5)
	w.Str("hello")
	w.BytesAndSize([]byte{9, 8, 7})

	data := w.Bytes()
	is.Equal(data[2:6], []byte{0x02, 0x01, 0x01, 0x02})

	r := hazel.NewReader(data)
	is.Equal(r.Uint8(), uint8(0xab))
	is.Equal(r.Bool(), true)
	is.Equal(r.Uint16(), uint16(0x0102))
	is.Equal(r.Uint16BE(), uint16(0x0102))
	is.Equal(r.Int32(), int32(-42))
	is.Equal(r.Float32(), float32(1.5))
	is.Equal(r.Str(), "hello")
	is.Equal(r.BytesAndSize(), []byte{9, 8, 7})
	is.NoErr(r.Err())
	is.Equal(r.Left(), 0)
}

func TestVector2(t *testing.T) {
	is := is.New(t)

	w := hazel.NewWriter()
	w.Vector2(hazel.Vector2{X: -50, Y: 50})
	w.Vector2(hazel.Vector2{X: 1000, Y: -1000})
	w.Vector2(hazel.Vector2{X: 12.5, Y: -3.25})
	is.Equal(w.Bytes()[:4], []byte{0x00, 0x00, 0xff, 0xff})

	r := hazel.NewReader(w.Bytes())
	is.Equal(r.Vector2(), hazel.Vector2{X: -50, Y: 50})
	// out of range values clamp
	is.Equal(r.Vector2(), hazel.Vector2{X: 50, Y: -50})

	v := r.Vector2()
	is.True(math.Abs(float64(v.X-12.5)) < 0.01)
	is.True(math.Abs(float64(v.Y+3.25)) < 0.01)
	is.NoErr(r.Err())
}

func TestFrames(t *testing.T) {
	is := is.New(t)

	w := hazel.NewWriter()
	w.Begin(5)
	w.Int32(7)
	w.Begin(1)
	w.Uint8(0xee)
	w.End()
	w.End()
	w.Begin(9)
	w.End()

	is.Equal(w.Bytes(), []byte{
		0x08, 0x00, 0x05, 0x07, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x01, 0xee,
		0x00, 0x00, 0x09,
	})

	r := hazel.NewReader(w.Bytes())

	tag, outer := r.Message()
	is.Equal(tag, uint8(5))
	is.Equal(outer.Int32(), int32(7))

	tag, inner := outer.Message()
	is.Equal(tag, uint8(1))
	is.Equal(inner.Uint8(), uint8(0xee))

	// a read past the frame bound fails without touching the parent
	inner.Uint8()
	is.True(errors.Is(inner.Err(), io.ErrUnexpectedEOF))

	tag, empty := r.Message()
	is.Equal(tag, uint8(9))
	is.Equal(empty.Left(), 0)
	is.NoErr(r.Err())
}

func TestTruncation(t *testing.T) {
	is := is.New(t)

	t.Run("sticky", func(t *testing.T) {
		r := hazel.NewReader([]byte{0x01})
		is.Equal(r.Uint32(), uint32(0))
		is.True(errors.Is(r.Err(), hazel.ErrUnexpectedEOF))
		// still failing, and the byte that was there is not consumed
		is.Equal(r.Uint8(), uint8(0))
		is.True(r.Err() != nil)
	})

	t.Run("string longer than buffer", func(t *testing.T) {
		r := hazel.NewReader([]byte{0x05, 'a', 'b'})
		is.Equal(r.Str(), "")
		is.True(errors.Is(r.Err(), io.ErrUnexpectedEOF))
	})

	t.Run("frame longer than buffer", func(t *testing.T) {
		r := hazel.NewReader([]byte{0x10, 0x00, 0x01, 0x00})
		_, sub := r.Message()
		is.True(r.Err() != nil)
		is.True(sub.Err() != nil)
	})

	t.Run("varint overflow", func(t *testing.T) {
		r := hazel.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
		r.Upacked()
		is.True(errors.Is(r.Err(), hazel.ErrVarintOverflow))
	})

	t.Run("count larger than buffer", func(t *testing.T) {
		w := hazel.NewWriter()
		w.Upacked(1<<28 - 1)
		w.Uint32(0)
		r := hazel.NewReader(w.Bytes())
		is.Equal(r.Count(4), 0)
		is.True(errors.Is(r.Err(), hazel.ErrUnexpectedEOF))
	})

	t.Run("count that fits", func(t *testing.T) {
		r := hazel.NewReader([]byte{0x02, 1, 2, 3, 4})
		is.Equal(r.Count(2), 2)
		is.NoErr(r.Err())
		// a count of elements that may be empty is not bounded
		r = hazel.NewReader([]byte{0x7f})
		is.Equal(r.Count(0), 127)
		is.NoErr(r.Err())
	})
}

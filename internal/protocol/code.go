package protocol

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var ErrInvalidCode = errors.New("invalid game code")

const codeAlphabet = "QWXRTYLPESDFGHUJKZOCVBINMA"

// Code is a game code as it travels on the wire. Four letter codes are their
// ascii bytes read as a little endian int32 (always positive); six letter
// codes pack alphabet indices and have the sign bit set.
type Code int32

func (c Code) String() string {
	return CodeToString(c)
}

func codeIndex(ch byte) (int, bool) {
	i := strings.IndexByte(codeAlphabet, ch)
	return i, i >= 0
}

// CodeFromString parses a four or six letter code, case insensitively.
func CodeFromString(s string) (Code, error) {
	s = strings.ToUpper(s)

	switch len(s) {
	case 4:
		for i := 0; i < 4; i++ {
			if s[i] < 'A' || s[i] > 'Z' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidCode, s)
			}
		}
		return Code(int32(s[0]) | int32(s[1])<<8 | int32(s[2])<<16 | int32(s[3])<<24), nil
	case 6:
		var idx [6]uint32
		for i := 0; i < 6; i++ {
			n, ok := codeIndex(s[i])
			if !ok {
				return 0, fmt.Errorf("%w: %q", ErrInvalidCode, s)
			}
			idx[i] = uint32(n)
		}
		one := (idx[0] + 26*idx[1]) & 0x3ff
		two := idx[2] + 26*(idx[3]+26*(idx[4]+26*idx[5]))
		return Code(int32(one | (two<<10)&0x3ffffc00 | 0x80000000)), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
}

// CodeToString renders c back into letters. Zero renders as an empty string.
func CodeToString(c Code) string {
	if c == 0 {
		return ""
	}

	if c > 0 {
		v := uint32(c)
		return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}

	v := uint32(c)
	a := v & 0x3ff
	b := (v >> 10) & 0xfffff
	return string([]byte{
		codeAlphabet[a%26],
		codeAlphabet[(a/26)%26],
		codeAlphabet[b%26],
		codeAlphabet[(b/26)%26],
		codeAlphabet[(b/(26*26))%26],
		codeAlphabet[(b/(26*26*26))%26],
	})
}

// RandomCode returns a random six letter code.
func RandomCode() Code {
	var b [6]byte
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	c, err := CodeFromString(string(b[:]))
	if err != nil {
		panic(err)
	}
	return c
}

package byteorder

import (
	"encoding/binary"
)

// https://linux.die.net/man/3/ntohs
//
// hazel speaks little endian for everything except packet nonces, which are
// sent in network order. the helpers below append to / read from a buffer so
// that the cursor in internal/hazel never has to juggle temporary slices.

// decrypt names:
// h  = host
// n  = network (big endian)
// le = little endian
// s  = short     = 16 bit
// l  = long      = 32 bit

func AppendHtons(buf []byte, val uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, val)
}

func Ntohs(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

func AppendLes(buf []byte, val uint16) []byte {
	return binary.LittleEndian.AppendUint16(buf, val)
}

func Les(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

func PutLes(buf []byte, val uint16) {
	binary.LittleEndian.PutUint16(buf, val)
}

func AppendLel(buf []byte, val uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, val)
}

func Lel(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

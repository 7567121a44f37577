package protocol

import "fmt"

// Version is the client version sent in the hello packet.
type Version int32

// DefaultVersion is the build this server speaks.
var DefaultVersion = EncodeVersion(2021, 6, 30, 0)

func EncodeVersion(year, month, day, revision int) Version {
	return Version(year*25000 + month*1800 + day*50 + revision)
}

func (v Version) Decode() (year, month, day, revision int) {
	n := int(v)
	year = n / 25000
	n %= 25000
	month = n / 1800
	n %= 1800
	day = n / 50
	revision = n % 50
	return year, month, day, revision
}

func (v Version) String() string {
	year, month, day, revision := v.Decode()
	return fmt.Sprintf("%d.%d.%d.%d", year, month, day, revision)
}

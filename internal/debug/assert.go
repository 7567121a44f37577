package debug

import (
	"fmt"
	"runtime"
)

// NOTE: assertions guard programmer errors only (unbalanced frames, impossible
// states). input coming off the wire must never reach an Assert, it is
// reported with an error instead.

// NOTE: originally stolen from
// https://github.com/golang/go/blob/eaa7d9ff86b35c72cc35bd7c14b349fa414c392f/src/go/types/errors.go#L18
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if !truth {
		panic(location(fmt.Sprintf("assertion failed(%s)", msg)))
	}
}

// Assertf is Assert with a formatted message, handy when the message carries
// values that are only worth computing when the assertion fails.
func Assertf(truth bool, format string, args ...any) {
	if !truth {
		panic(location("assertion failed: " + fmt.Sprintf(format, args...)))
	}
}

// include information about the assertion location. due to panic recovery,
// this location is otherwise buried in the middle of the panicking stack.
func location(msg string) string {
	if _, file, line, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("%s:%d: %s", file, line, msg)
	}
	return msg
}

package wire

import "unsafe"

// s2b converts a string to a byte slice without copying.
//
// The returned slice shares the string's backing array and MUST NOT be
// mutated. Used on the response write path where the bytes go straight
// to the socket.
//
// Allocation behavior: 0 allocs/op
func s2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// b2s converts a byte slice to a string without copying.
//
// The caller must guarantee the slice is not mutated while the string
// is alive.
//
// Allocation behavior: 0 allocs/op
func b2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

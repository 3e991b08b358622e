//go:build amd64 && !noasm
// +build amd64,!noasm

package ws

import (
	"golang.org/x/sys/cpu"
)

var hasAVX2 = cpu.X86.HasAVX2

// maskWide XORs four 8-byte lanes per iteration in plain Go; the tail
// under 32 bytes goes byte-wise. maskFast sends payloads under 32
// bytes to maskScalar directly.
func maskWide(data []byte, key [4]byte) {
	k64 := uint64(key[0]) | uint64(key[1])<<8 | uint64(key[2])<<16 | uint64(key[3])<<24
	k64 |= k64 << 32

	i := 0
	for ; i+32 <= len(data); i += 32 {
		for lane := 0; lane < 32; lane += 8 {
			o := i + lane
			v := uint64(data[o]) | uint64(data[o+1])<<8 | uint64(data[o+2])<<16 | uint64(data[o+3])<<24 |
				uint64(data[o+4])<<32 | uint64(data[o+5])<<40 | uint64(data[o+6])<<48 | uint64(data[o+7])<<56
			v ^= k64
			data[o] = byte(v)
			data[o+1] = byte(v >> 8)
			data[o+2] = byte(v >> 16)
			data[o+3] = byte(v >> 24)
			data[o+4] = byte(v >> 32)
			data[o+5] = byte(v >> 40)
			data[o+6] = byte(v >> 48)
			data[o+7] = byte(v >> 56)
		}
	}
	for ; i < len(data); i++ {
		data[i] ^= key[i%4]
	}
}

// maskFast picks the wide kernel for large payloads on AVX2 parts.
func maskFast(data []byte, key [4]byte) {
	if hasAVX2 && len(data) >= 32 {
		maskWide(data, key)
		return
	}
	maskScalar(data, key)
}

func init() {
	applyMask = maskFast
}

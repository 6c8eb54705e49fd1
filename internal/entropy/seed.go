// Package entropy supplies seeds for runs that do not fix one.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Seed returns a positive random int64 read from crypto/rand. If the
// system source fails it falls back to the clock.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()&(1<<63-1) | 1
	}
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		n = 1
	}
	return n
}

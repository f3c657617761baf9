// Package idgen produces the opaque, time-sortable identifiers documents
// receive when no caller-supplied _id is present.
//
// Layout (spec section 6), 12 raw bytes hex-encoded to 24 ASCII bytes:
//
//	[0:4]  seconds since epoch, big-endian
//	[4:9]  5 random bytes, generated once per process
//	[9:12] 3-byte counter, big-endian, wrapping
//
// Lexicographic order on the hex string matches creation order within a
// process because the timestamp is the most significant field and the
// counter never shares a second with a smaller value than a prior call.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

var processRandom = mustRandom5()

var counter uint32

func mustRandom5() [5]byte {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is a platform problem, not a recoverable
		// runtime condition; the original ObjectId generator this mirrors
		// makes the same assumption.
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return b
}

// New generates a fresh 24-byte hex identifier.
func New() []byte {
	return NewAt(time.Now())
}

// NewAt is New with an injectable clock, used by tests that need
// deterministic ordering across a batch of calls within the same second.
func NewAt(t time.Time) []byte {
	var raw [12]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(t.Unix()))
	copy(raw[4:9], processRandom[:])
	c := atomic.AddUint32(&counter, 1)
	raw[9] = byte(c >> 16)
	raw[10] = byte(c >> 8)
	raw[11] = byte(c)

	dst := make([]byte, 24)
	hex.Encode(dst, raw[:])
	return dst
}

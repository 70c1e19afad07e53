// Package idgen provides identifier generators for action records.
package idgen

import (
	"crypto/md5"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// UUID generates random (version 4) identifiers.
type UUID struct{}

// NextID returns a fresh random uuid string.
func (UUID) NextID() string {
	return uuid.NewString()
}

// Sequence derives a deterministic series of uuids from a seed. Two
// sequences with the same seed yield the same ids in the same order, which
// keeps action logs reproducible in tests and replays.
type Sequence struct {
	mu   sync.Mutex
	base uuid.UUID
	next uint64
}

// NewSequence creates a Sequence seeded with seed.
func NewSequence(seed string) *Sequence {
	return &Sequence{base: uuid.UUID(md5.Sum([]byte(seed)))}
}

// NextID returns the next id of the sequence.
func (s *Sequence) NextID() string {
	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()

	var buf [16 + 8]byte
	copy(buf[:16], s.base[:])
	binary.BigEndian.PutUint64(buf[16:], n)
	return uuid.UUID(md5.Sum(buf[:])).String()
}

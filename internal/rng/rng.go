// Package rng derives independent, reproducible random streams from one
// analysis seed. Each component asks for its own named stream so adding a
// draw in one phase never shifts the numbers another phase sees.
package rng

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"
)

// Derive maps (name, seed) to the seed of the named stream
func Derive(name string, seed int64) int64 {
	sum := sha256.Sum256([]byte(name + "|" + strconv.FormatInt(seed, 10)))
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// New returns the named stream for seed
func New(name string, seed int64) *rand.Rand {
	return rand.New(rand.NewSource(Derive(name, seed)))
}

// Source implements ports.RNGPort
type Source struct{}

// NewSource creates the RNG port implementation
func NewSource() *Source {
	return &Source{}
}

func (s *Source) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(name, seed), nil
}

func (s *Source) DeriveSeed(name string, seed int64) int64 {
	return Derive(name, seed)
}

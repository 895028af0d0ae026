// Package randutil centralises how seeded RNGs are constructed so that every
// call site gets reproducible sequences from the same seed material.
package randutil

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from the provided int64.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// HandSeed derives the per-hand shuffle seed from the table seed and hand
// number. Same inputs, same shuffle.
func HandSeed(tableSeed string, handNumber uint64) int64 {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", tableSeed, handNumber))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

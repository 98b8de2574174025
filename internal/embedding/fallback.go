package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// FallbackVector derives a unit-length pseudo-embedding from the SHA-256 of
// text. Equal texts always map to equal vectors.
func FallbackVector(text string, dims int) []float32 {
	if dims <= 0 {
		return []float32{}
	}
	out := make([]float32, dims)
	var block [sha256.Size]byte
	seed := sha256.Sum256([]byte(text))

	var norm float64
	for i := 0; i < dims; i++ {
		if i%(sha256.Size/4) == 0 {
			var counter [4]byte
			binary.BigEndian.PutUint32(counter[:], uint32(i))
			block = sha256.Sum256(append(seed[:], counter[:]...))
		}
		off := (i % (sha256.Size / 4)) * 4
		u := binary.BigEndian.Uint32(block[off : off+4])
		v := float64(u)/float64(math.MaxUint32)*2 - 1
		out[i] = float32(v)
		norm += v * v
	}

	if norm == 0 {
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}

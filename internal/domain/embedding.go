package domain

// Embedding is a query or chunk vector together with its provenance.
// Degraded vectors come from the deterministic fallback and must not be
// used for nearest-neighbour search.
type Embedding struct {
	Vector   []float32
	Model    string
	Degraded bool
}

// Dimensions returns the vector length.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// PendingEmbedding is an active chunk stored without a vector, waiting for
// the backfill worker.
type PendingEmbedding struct {
	ChunkID  string
	Text     string
	Attempts int
}

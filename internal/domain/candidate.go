package domain

// AssistReason records which recall pass forced a candidate into a selection.
type AssistReason string

const (
	AssistNone           AssistReason = ""
	AssistSparseDocument AssistReason = "sparse_document"
	AssistSmallDense     AssistReason = "small_dense"
)

// Candidate is a chunk annotated with every signal the ranking stages derive.
// It is built once per search hit and passed by value through each stage.
type Candidate struct {
	Chunk Chunk

	// Distance is the raw cosine distance reported by the vector store.
	Distance float64
	// Similarity is clamp(1 - Distance, 0, 1).
	Similarity float64
	// Score is the weighted blend; higher is better.
	Score float64
	// Composite is 1 - Score; lower is better and is what ranking sorts on.
	Composite float64

	NearMatch          bool
	Protected          bool
	RecallInjected     bool
	SoftRejected       bool
	ExcerptCapBypassed bool
	AssistReason       AssistReason
}

// NewCandidate wraps a chunk with its raw distance.
func NewCandidate(chunk Chunk, distance float64) Candidate {
	return Candidate{
		Chunk:      chunk,
		Distance:   distance,
		Similarity: Clamp01(1 - distance),
	}
}

// ID returns the chunk id.
func (c Candidate) ID() string {
	return c.Chunk.ID
}

// DocumentID returns the owning knowledge item id.
func (c Candidate) DocumentID() string {
	return c.Chunk.KnowledgeItemID
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

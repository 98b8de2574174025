package domain

// SearchMode reports which path produced a retrieval result.
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeKeyword SearchMode = "keyword"
	SearchModeEmpty   SearchMode = "empty"
)

// RetrievalRequest is the input of a knowledge retrieval.
type RetrievalRequest struct {
	OrgID          string
	UserID         string
	Query          string
	Intent         Intent
	Limit          int
	Roles          []ChunkRole
	FolderIDs      []string
	KnowledgeItems []string
	// Classification skips query classification when set.
	Classification *Classification
}

// SearchFilter is the store-level filter for vector and keyword search.
type SearchFilter struct {
	OrgID          string
	UserID         string
	Roles          []ChunkRole
	FolderIDs      []string
	KnowledgeItems []string
	MinTokens      int
	MinChars       int
}

// SearchHit is a chunk with its raw cosine distance.
type SearchHit struct {
	Chunk    Chunk
	Distance float64
}

// RetrievalResult is the ranked output of a knowledge retrieval.
type RetrievalResult struct {
	Candidates     []Candidate
	Classification Classification
	ExpandedTerms  []string
	Mode           SearchMode
	Decisions      []Decision
}

// Chunks returns the plain chunks in result order.
func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Chunk)
	}
	return out
}

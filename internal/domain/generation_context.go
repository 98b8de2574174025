package domain

// Category names a kind of item competing for the token budget.
type Category string

const (
	CategoryTemplate        Category = "template"
	CategoryStructure       Category = "structure"
	CategoryVIPChunks       Category = "vip_chunks"
	CategoryVIPFacts        Category = "vip_facts"
	CategoryBusinessContext Category = "business_context"
	CategoryChunks          Category = "chunks"
	CategoryEnrichment      Category = "enrichment"
	CategoryFacts           Category = "facts"
	CategoryUserContext     Category = "user_context"
)

// TokenUsage holds estimated tokens per category.
type TokenUsage struct {
	Template        int `json:"template"`
	Structure       int `json:"structure"`
	VIPChunks       int `json:"vip_chunks"`
	VIPFacts        int `json:"vip_facts"`
	BusinessContext int `json:"business_context"`
	Chunks          int `json:"chunks"`
	Enrichment      int `json:"enrichment"`
	Facts           int `json:"facts"`
	UserContext     int `json:"user_context"`
	Total           int `json:"total"`
}

// Add records tokens against a category and the total.
func (u *TokenUsage) Add(c Category, tokens int) {
	switch c {
	case CategoryTemplate:
		u.Template += tokens
	case CategoryStructure:
		u.Structure += tokens
	case CategoryVIPChunks:
		u.VIPChunks += tokens
	case CategoryVIPFacts:
		u.VIPFacts += tokens
	case CategoryBusinessContext:
		u.BusinessContext += tokens
	case CategoryChunks:
		u.Chunks += tokens
	case CategoryEnrichment:
		u.Enrichment += tokens
	case CategoryFacts:
		u.Facts += tokens
	case CategoryUserContext:
		u.UserContext += tokens
	}
	u.Total += tokens
}

// NonVIP returns the tokens spent on ranked, prunable items.
func (u TokenUsage) NonVIP() int {
	return u.Chunks + u.Enrichment + u.Facts + u.UserContext
}

// ItemCounts holds item counts per prunable category.
type ItemCounts struct {
	VIPChunks   int `json:"vip_chunks"`
	VIPFacts    int `json:"vip_facts"`
	Chunks      int `json:"chunks"`
	Enrichment  int `json:"enrichment"`
	Facts       int `json:"facts"`
	UserContext int `json:"user_context"`
}

// Inc increments the count for a category. Unknown categories are ignored.
func (c *ItemCounts) Inc(cat Category) {
	switch cat {
	case CategoryVIPChunks:
		c.VIPChunks++
	case CategoryVIPFacts:
		c.VIPFacts++
	case CategoryChunks:
		c.Chunks++
	case CategoryEnrichment:
		c.Enrichment++
	case CategoryFacts:
		c.Facts++
	case CategoryUserContext:
		c.UserContext++
	}
}

// Decision is one auditable step taken while building a context.
type Decision struct {
	Stage      string  `json:"stage"`
	Action     string  `json:"action"`
	Reason     string  `json:"reason,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Composite  float64 `json:"composite,omitempty"`
}

// GenerationContext is the immutable, request-scoped result of assembly.
type GenerationContext struct {
	Chunks           []Chunk             `json:"chunks"`
	VIPChunks        []Chunk             `json:"vip_chunks"`
	EnrichmentChunks []Chunk             `json:"enrichment_chunks"`
	Facts            []Fact              `json:"facts"`
	VIPFacts         []Fact              `json:"vip_facts"`
	Structure        *StructureCandidate `json:"structure,omitempty"`
	Template         *Template           `json:"template,omitempty"`
	UserContext      string              `json:"user_context,omitempty"`
	BusinessContext  string              `json:"business_context,omitempty"`
	Budget           int                 `json:"budget"`
	TokenUsage       TokenUsage          `json:"token_usage"`
	Provided         ItemCounts          `json:"provided"`
	Used             ItemCounts          `json:"used"`
	Pruned           ItemCounts          `json:"pruned"`
	Decisions        []Decision          `json:"decisions"`
}

// IsViable reports whether generation should be attempted: a template is
// present and at least one chunk, fact or user text survived.
func (g *GenerationContext) IsViable() bool {
	if g == nil || g.Template == nil {
		return false
	}
	hasChunk := len(g.Chunks)+len(g.VIPChunks)+len(g.EnrichmentChunks) > 0
	hasFact := len(g.Facts)+len(g.VIPFacts) > 0
	return hasChunk || hasFact || g.UserContext != ""
}

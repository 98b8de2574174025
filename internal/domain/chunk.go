package domain

import (
	"strings"
	"time"
)

// ChunkRole is the rhetorical role of a chunk inside its knowledge item.
type ChunkRole string

const (
	RoleDefinition     ChunkRole = "definition"
	RoleMetric         ChunkRole = "metric"
	RoleInstruction    ChunkRole = "instruction"
	RoleStrategicClaim ChunkRole = "strategic_claim"
	RoleHeuristic      ChunkRole = "heuristic"
	RoleCausalClaim    ChunkRole = "causal_claim"
	RoleExample        ChunkRole = "example"
	RoleQuote          ChunkRole = "quote"
	RoleOther          ChunkRole = "other"
)

// ChunkType describes how the chunk text was produced.
type ChunkType string

const (
	ChunkTypeNormalized ChunkType = "normalized"
	ChunkTypeExcerpt    ChunkType = "excerpt"
	ChunkTypeSummary    ChunkType = "summary"
)

// ChunkKind is the derived usage category of a chunk.
type ChunkKind string

const (
	KindFact    ChunkKind = "fact"
	KindAngle   ChunkKind = "angle"
	KindExample ChunkKind = "example"
	KindQuote   ChunkKind = "quote"
)

// Authority of the source that produced a chunk.
type Authority string

const (
	AuthorityHigh   Authority = "high"
	AuthorityMedium Authority = "medium"
	AuthorityLow    Authority = "low"
)

// TimeHorizon describes how long a chunk's claim stays valid.
type TimeHorizon string

const (
	HorizonCurrent  TimeHorizon = "current"
	HorizonNearTerm TimeHorizon = "near_term"
	HorizonLongTerm TimeHorizon = "long_term"
	HorizonUnknown  TimeHorizon = "unknown"
)

// SourceVariant distinguishes cleaned text from the raw source text.
type SourceVariant string

const (
	VariantNormalized SourceVariant = "normalized"
	VariantRaw        SourceVariant = "raw"
)

// UsagePolicy restricts how a chunk may be used in generation.
type UsagePolicy string

const (
	UsageDefault         UsagePolicy = "default"
	UsageInspirationOnly UsagePolicy = "inspiration_only"
	UsageNeverGenerate   UsagePolicy = "never_generate"
)

// Chunk is a minimal retrievable unit of knowledge text.
type Chunk struct {
	ID              string
	KnowledgeItemID string
	OrgID           string
	UserID          string
	FolderID        string
	Text            string
	Role            ChunkRole
	Type            ChunkType
	Authority       Authority
	Confidence      float64
	ItemConfidence  float64
	TimeHorizon     TimeHorizon
	TokenCount      int
	Domain          string
	SourceVariant   SourceVariant
	UsagePolicy     UsagePolicy
	IsActive        bool
	Embedding       []float32
	CreatedAt       time.Time
}

// Kind derives the usage category. inspiration_only always yields an angle.
func (c Chunk) Kind() ChunkKind {
	if c.UsagePolicy == UsageInspirationOnly {
		return KindAngle
	}
	switch c.Role {
	case RoleExample:
		return KindExample
	case RoleQuote:
		return KindQuote
	case RoleStrategicClaim, RoleHeuristic, RoleCausalClaim:
		return KindAngle
	default:
		return KindFact
	}
}

// Generatable reports whether the chunk may enter a retrieval result.
func (c Chunk) Generatable() bool {
	return c.UsagePolicy != UsageNeverGenerate
}

// NormalizedDomain returns the lowercased, trimmed domain.
func (c Chunk) NormalizedDomain() string {
	return NormalizeDomain(c.Domain)
}

// NormalizeDomain lowercases and trims an open-vocabulary domain string.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ParseChunkRole maps free text to a known role, defaulting to RoleOther.
func ParseChunkRole(s string) ChunkRole {
	role := ChunkRole(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case RoleDefinition, RoleMetric, RoleInstruction, RoleStrategicClaim, RoleHeuristic,
		RoleCausalClaim, RoleExample, RoleQuote:
		return role
	}
	return RoleOther
}

// ParseChunkAnnotations fills unknown or empty annotation values with the
// storage defaults: normalized, medium authority, unknown horizon, default
// policy.
func ParseChunkAnnotations(chunkType, authority, horizon, variant, policy string) (ChunkType, Authority, TimeHorizon, SourceVariant, UsagePolicy) {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	t := ChunkType(norm(chunkType))
	switch t {
	case ChunkTypeNormalized, ChunkTypeExcerpt, ChunkTypeSummary:
	default:
		t = ChunkTypeNormalized
	}

	a := Authority(norm(authority))
	switch a {
	case AuthorityHigh, AuthorityMedium, AuthorityLow:
	default:
		a = AuthorityMedium
	}

	h := TimeHorizon(norm(horizon))
	switch h {
	case HorizonCurrent, HorizonNearTerm, HorizonLongTerm:
	default:
		h = HorizonUnknown
	}

	v := SourceVariant(norm(variant))
	if v != VariantRaw {
		v = VariantNormalized
	}

	p := UsagePolicy(norm(policy))
	switch p {
	case UsageInspirationOnly, UsageNeverGenerate:
	default:
		p = UsageDefault
	}
	return t, a, h, v, p
}

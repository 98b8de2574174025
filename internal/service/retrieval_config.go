package service

import "github.com/cloo-solutions/knowctx/internal/domain"

// ScoreWeights are the coefficients of the weighted blend.
type ScoreWeights struct {
	Similarity float64 `yaml:"similarity"`
	Domain     float64 `yaml:"domain"`
	Role       float64 `yaml:"role"`
	Authority  float64 `yaml:"authority"`
	Confidence float64 `yaml:"confidence"`
	Time       float64 `yaml:"time"`
}

// RecallPassConfig bounds one recall-guarantee pass. A document qualifies when
// its chunk count in the window lies in [MinChunks, MaxChunks] and its best
// chunk is within DistanceCeiling.
type RecallPassConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MinChunks       int     `yaml:"min_chunks"`
	MaxChunks       int     `yaml:"max_chunks"`
	DistanceCeiling float64 `yaml:"distance_ceiling"`
	MaxInjections   int     `yaml:"max_injections"`
}

// RetrievalConfig holds every threshold used by retrieval, structure fit and
// assembly. It is passed in at construction and never read from globals.
type RetrievalConfig struct {
	TopN                 int     `yaml:"top_n"`
	DefaultLimit         int     `yaml:"default_limit"`
	NearMatchDistance    float64 `yaml:"near_match_distance"`
	SoftRejectSimilarity float64 `yaml:"soft_reject_similarity"`
	ExcerptCap           int     `yaml:"excerpt_cap"`
	VariantReorder       bool    `yaml:"variant_reorder"`

	Weights ScoreWeights `yaml:"weights"`
	// RoleBoosts multiply the weighted score per role; missing roles use 1.0.
	RoleBoosts map[domain.ChunkRole]float64 `yaml:"role_boosts"`

	AllowedRoles []domain.ChunkRole `yaml:"allowed_roles"`
	MinTokens    int                `yaml:"min_tokens"`
	MinChars     int                `yaml:"min_chars"`

	Sparse     RecallPassConfig `yaml:"sparse"`
	SmallDense RecallPassConfig `yaml:"small_dense"`

	MaxExpansionTerms int                 `yaml:"max_expansion_terms"`
	DomainTerms       map[string][]string `yaml:"domain_terms"`

	EnrichmentLimit int `yaml:"enrichment_limit"`
	FactLimit       int `yaml:"fact_limit"`

	MinFitScore     int     `yaml:"min_fit_score"`
	TokenBudget     int     `yaml:"token_budget"`
	EnrichmentScore float64 `yaml:"enrichment_score"`
	UserTextScore   float64 `yaml:"user_text_score"`
}

// DefaultRetrievalConfig returns the production defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopN:                 60,
		DefaultLimit:         8,
		NearMatchDistance:    0.10,
		SoftRejectSimilarity: 0.25,
		ExcerptCap:           2,
		VariantReorder:       true,
		Weights: ScoreWeights{
			Similarity: 0.50,
			Domain:     0.15,
			Role:       0.15,
			Authority:  0.10,
			Confidence: 0.05,
			Time:       0.05,
		},
		RoleBoosts: map[domain.ChunkRole]float64{},
		AllowedRoles: []domain.ChunkRole{
			domain.RoleDefinition,
			domain.RoleMetric,
			domain.RoleInstruction,
			domain.RoleStrategicClaim,
			domain.RoleHeuristic,
			domain.RoleCausalClaim,
			domain.RoleExample,
			domain.RoleQuote,
			domain.RoleOther,
		},
		MinTokens: 5,
		MinChars:  20,
		Sparse: RecallPassConfig{
			Enabled:         true,
			MinChunks:       1,
			MaxChunks:       2,
			DistanceCeiling: 0.20,
			MaxInjections:   3,
		},
		SmallDense: RecallPassConfig{
			Enabled:         true,
			MinChunks:       3,
			MaxChunks:       5,
			DistanceCeiling: 0.25,
			MaxInjections:   2,
		},
		MaxExpansionTerms: 6,
		DomainTerms:       defaultDomainTerms(),
		EnrichmentLimit:   3,
		FactLimit:         5,
		MinFitScore:       55,
		TokenBudget:       1800,
		EnrichmentScore:   0.5,
		UserTextScore:     1.0,
	}
}

func defaultDomainTerms() map[string][]string {
	return map[string][]string{
		"pricing":    {"pricing tiers", "plans", "discounts"},
		"sales":      {"pipeline", "objections", "closing"},
		"marketing":  {"positioning", "channels", "messaging"},
		"product":    {"features", "use cases", "roadmap"},
		"hiring":     {"roles", "interviews", "compensation"},
		"finance":    {"revenue", "margins", "cash flow"},
		"leadership": {"culture", "decisions", "delegation"},
		"saas":       {"churn", "retention", "expansion revenue"},
	}
}

// window returns the size of the ranked Top-K window for a limit.
func (c RetrievalConfig) window(limit int) int {
	if limit*3 > c.TopN {
		return limit * 3
	}
	return c.TopN
}

func (c RetrievalConfig) roleBoost(role domain.ChunkRole) float64 {
	if b, ok := c.RoleBoosts[role]; ok && b > 0 {
		return b
	}
	return 1.0
}

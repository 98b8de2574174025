package handlers

import (
	"strings"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/service"
)

type ChunkResponse struct {
	ID              string  `json:"id"`
	KnowledgeItemID string  `json:"knowledge_item_id"`
	Text            string  `json:"text"`
	Role            string  `json:"role"`
	Kind            string  `json:"kind"`
	Type            string  `json:"type"`
	Authority       string  `json:"authority"`
	Confidence      float64 `json:"confidence"`
	Domain          string  `json:"domain,omitempty"`
	SourceVariant   string  `json:"source_variant"`
	UsagePolicy     string  `json:"usage_policy"`
	TokenCount      int     `json:"token_count"`
}

type CandidateResponse struct {
	ChunkResponse
	Distance       float64 `json:"distance"`
	Score          float64 `json:"score"`
	Composite      float64 `json:"composite"`
	NearMatch      bool    `json:"near_match,omitempty"`
	Protected      bool    `json:"protected,omitempty"`
	RecallInjected bool    `json:"recall_injected,omitempty"`
	AssistReason   string  `json:"assist_reason,omitempty"`
}

type FactResponse struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type ClassificationResponse struct {
	Intent      string `json:"intent"`
	Domain      string `json:"domain"`
	FunnelStage string `json:"funnel_stage"`
	Source      string `json:"source"`
}

type RetrievalResponse struct {
	Results        []CandidateResponse    `json:"results"`
	Classification ClassificationResponse `json:"classification"`
	ExpandedTerms  []string               `json:"expanded_terms"`
	Mode           string                 `json:"mode"`
	Decisions      []domain.Decision      `json:"decisions,omitempty"`
}

// ChunkInput is a caller-supplied (VIP) chunk.
type ChunkInput struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Role       string `json:"role,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
}

type FactInput struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type StructureInput struct {
	ID          string   `json:"id"`
	Platform    string   `json:"platform,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	FunnelStage string   `json:"funnel_stage,omitempty"`
	CTAType     string   `json:"cta_type,omitempty"`
	Sections    []string `json:"sections"`
	Confidence  float64  `json:"confidence,omitempty"`
}

func toChunkResponse(c domain.Chunk) ChunkResponse {
	return ChunkResponse{
		ID:              c.ID,
		KnowledgeItemID: c.KnowledgeItemID,
		Text:            c.Text,
		Role:            string(c.Role),
		Kind:            string(c.Kind()),
		Type:            string(c.Type),
		Authority:       string(c.Authority),
		Confidence:      c.Confidence,
		Domain:          c.Domain,
		SourceVariant:   string(c.SourceVariant),
		UsagePolicy:     string(c.UsagePolicy),
		TokenCount:      c.TokenCount,
	}
}

func toChunkResponses(chunks []domain.Chunk) []ChunkResponse {
	out := make([]ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, toChunkResponse(c))
	}
	return out
}

func toCandidateResponses(cands []domain.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(cands))
	for _, c := range cands {
		out = append(out, CandidateResponse{
			ChunkResponse:  toChunkResponse(c.Chunk),
			Distance:       c.Distance,
			Score:          c.Score,
			Composite:      c.Composite,
			NearMatch:      c.NearMatch,
			Protected:      c.Protected,
			RecallInjected: c.RecallInjected,
			AssistReason:   string(c.AssistReason),
		})
	}
	return out
}

func toFactResponses(facts []domain.Fact) []FactResponse {
	out := make([]FactResponse, 0, len(facts))
	for _, f := range facts {
		out = append(out, FactResponse{ID: f.ID, Text: f.Text, Confidence: f.Confidence})
	}
	return out
}

func toClassificationResponse(c domain.Classification) ClassificationResponse {
	return ClassificationResponse{
		Intent:      string(c.Intent),
		Domain:      c.Domain,
		FunnelStage: string(c.FunnelStage),
		Source:      c.Source,
	}
}

func toRetrievalResponse(res domain.RetrievalResult, withTrace bool) RetrievalResponse {
	resp := RetrievalResponse{
		Results:        toCandidateResponses(res.Candidates),
		Classification: toClassificationResponse(res.Classification),
		ExpandedTerms:  res.ExpandedTerms,
		Mode:           string(res.Mode),
	}
	if withTrace {
		resp.Decisions = res.Decisions
	}
	return resp
}

func parseRoles(in []string) []domain.ChunkRole {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.ChunkRole, 0, len(in))
	for _, r := range in {
		out = append(out, domain.ParseChunkRole(r))
	}
	return out
}

// parseIntent accepts an empty value; anything else must be a known intent.
func parseIntent(s string) (domain.Intent, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	i, ok := domain.ParseIntent(s)
	if !ok {
		return "", domain.ErrInvalidIntent
	}
	return i, nil
}

func parseFunnel(s string) (domain.FunnelStage, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	f, ok := domain.ParseFunnelStage(s)
	if !ok {
		return "", domain.ErrInvalidFunnelStage
	}
	return f, nil
}

func toVIPChunks(orgID string, in []ChunkInput) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(in))
	for _, c := range in {
		tokens := c.TokenCount
		if tokens <= 0 {
			tokens = service.EstimateTokens(c.Text)
		}
		out = append(out, domain.Chunk{
			ID:            c.ID,
			OrgID:         orgID,
			Text:          c.Text,
			Role:          domain.ParseChunkRole(c.Role),
			Type:          domain.ChunkTypeNormalized,
			SourceVariant: domain.VariantNormalized,
			UsagePolicy:   domain.UsageDefault,
			TokenCount:    tokens,
			IsActive:      true,
		})
	}
	return out
}

func toVIPFacts(orgID string, in []FactInput) []domain.Fact {
	out := make([]domain.Fact, 0, len(in))
	for _, f := range in {
		out = append(out, domain.Fact{
			ID:         f.ID,
			OrgID:      orgID,
			Text:       f.Text,
			Confidence: domain.Clamp01(f.Confidence),
			TokenCount: service.EstimateTokens(f.Text),
		})
	}
	return out
}

func toStructure(orgID string, in *StructureInput) (*domain.StructureCandidate, error) {
	if in == nil {
		return nil, nil
	}
	if len(in.Sections) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "structure sections are required")
	}
	intent, err := parseIntent(in.Intent)
	if err != nil {
		return nil, err
	}
	funnel, err := parseFunnel(in.FunnelStage)
	if err != nil {
		return nil, err
	}
	return &domain.StructureCandidate{
		ID:          in.ID,
		OrgID:       orgID,
		Platform:    in.Platform,
		Intent:      intent,
		FunnelStage: funnel,
		CTAType:     in.CTAType,
		Sections:    in.Sections,
		Confidence:  in.Confidence,
	}, nil
}

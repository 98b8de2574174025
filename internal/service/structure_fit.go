package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

// StructureStore lists canonical structures. It has no write path: ephemeral
// structures are never persisted here.
type StructureStore interface {
	ListCanonical(ctx context.Context, orgID string, intent domain.Intent, funnel domain.FunnelStage, platform string) ([]domain.StructureCandidate, error)
}

// EphemeralRequest is the input of an ephemeral structure generation.
type EphemeralRequest struct {
	Prompt   string
	Intent   domain.Intent
	Funnel   domain.FunnelStage
	Platform string
	Band     domain.LengthBand
	Shape    domain.ShapeHint
}

// GeneratedStructure is the raw generator answer.
type GeneratedStructure struct {
	Sections  []string
	CTAType   string
	ModelUsed string
}

// EphemeralStructureGenerator synthesizes a structure with a language model.
type EphemeralStructureGenerator interface {
	Generate(ctx context.Context, req EphemeralRequest) (GeneratedStructure, error)
}

// ResolveRequest is the input of ResolveStructure.
type ResolveRequest struct {
	OrgID        string
	Intent       domain.Intent
	FunnelStage  domain.FunnelStage
	Platform     string
	Prompt       string
	Template     *domain.Template
	UserSelected *domain.StructureCandidate
}

// StructureResolver picks the best canonical structure or falls back to an
// ephemeral one.
type StructureResolver struct {
	store     StructureStore
	generator EphemeralStructureGenerator
	cfg       RetrievalConfig
	log       *zap.Logger
}

// NewStructureResolver creates a resolver. generator may be nil, in which case
// the deterministic skeleton is used as the ephemeral structure.
func NewStructureResolver(store StructureStore, generator EphemeralStructureGenerator, cfg RetrievalConfig, log *zap.Logger) *StructureResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &StructureResolver{store: store, generator: generator, cfg: cfg, log: log}
}

var shapeKeywords = []struct {
	shape    domain.ShapeHint
	keywords []string
}{
	{domain.ShapeStory, []string{"story", "narrative", "journey", "anecdote", "turning point", "conflict"}},
	{domain.ShapeList, []string{"list", "tips", "steps", "bullet", "ways", "reasons", "point"}},
	{domain.ShapeArgument, []string{"argument", "claim", "evidence", "thesis", "counter", "rebuttal", "myth"}},
}

// sniffShape counts keyword hits in text; the shape with most hits wins and
// ties go to the earlier shape.
func sniffShape(text string) domain.ShapeHint {
	lower := strings.ToLower(text)
	best, bestHits := domain.ShapeNone, 0
	for _, sk := range shapeKeywords {
		hits := 0
		for _, kw := range sk.keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > bestHits {
			best, bestHits = sk.shape, hits
		}
	}
	return best
}

func lengthBand(sections int) domain.LengthBand {
	switch {
	case sections <= 0:
		return domain.BandUnknown
	case sections <= 3:
		return domain.BandShort
	case sections <= 6:
		return domain.BandMedium
	default:
		return domain.BandLong
	}
}

func hasCTASection(sections []string) bool {
	for _, s := range sections {
		l := strings.ToLower(s)
		if strings.Contains(l, "cta") || strings.Contains(l, "call to action") {
			return true
		}
	}
	return false
}

// DeriveSignature builds the requested shape from a template.
func DeriveSignature(tpl *domain.Template, intent domain.Intent, funnel domain.FunnelStage) domain.StructureSignature {
	sig := domain.StructureSignature{
		Band:   domain.BandUnknown,
		Shape:  domain.ShapeNone,
		Intent: intent,
		Funnel: funnel,
	}
	if tpl == nil {
		return sig
	}
	sig.Band = lengthBand(len(tpl.Sections))
	if raw, err := json.Marshal(tpl); err == nil {
		sig.Shape = sniffShape(string(raw))
	}
	cta := hasCTASection(tpl.Sections)
	sig.HasCTA = &cta
	return sig
}

func bandRange(b domain.LengthBand) (lo, hi int) {
	switch b {
	case domain.BandShort:
		return 1, 3
	case domain.BandMedium:
		return 4, 6
	default:
		return 7, 1 << 30
	}
}

func candidateHasCTA(c domain.StructureCandidate) bool {
	t := strings.ToLower(strings.TrimSpace(c.CTAType))
	if t != "" && t != "none" {
		return true
	}
	return hasCTASection(c.Sections)
}

// ScoreStructure scores a candidate against a signature on a 0-100 scale.
func ScoreStructure(c domain.StructureCandidate, sig domain.StructureSignature) int {
	n := len(c.Sections)
	score := 0

	if sig.Band == domain.BandUnknown {
		score += 20
	} else {
		lo, hi := bandRange(sig.Band)
		off := 0
		if n < lo {
			off = lo - n
		} else if n > hi {
			off = n - hi
		}
		score += max(0, 40-10*off)
	}

	candShape := sniffShape(strings.Join(c.Sections, " "))
	switch {
	case sig.Shape == domain.ShapeNone:
		score += 15
	case candShape == domain.ShapeNone:
		score += 10
	case candShape == sig.Shape:
		score += 30
	}

	hasCTA := candidateHasCTA(c)
	switch {
	case sig.HasCTA == nil && hasCTA:
		score += 10
	case sig.HasCTA == nil:
		score += 5
	case *sig.HasCTA == hasCTA:
		score += 10
	}

	if n <= 5 {
		score += 10
	} else {
		score += max(0, 10-2*(n-5))
	}

	if sig.Intent != "" && c.Intent == sig.Intent {
		score += 5
	}
	if sig.Funnel != "" && c.FunnelStage == sig.Funnel {
		score += 5
	}

	return min(100, max(0, score))
}

// ResolveStructure selects the structure for a request. User selection wins;
// otherwise the best canonical structure at or above the minimum fit score is
// auto-matched; otherwise an ephemeral structure is generated. Store and
// generator failures never surface.
func (r *StructureResolver) ResolveStructure(ctx context.Context, req ResolveRequest) domain.StructureResolution {
	ctx, span := telemetry.StartSpan(ctx, "StructureResolver.ResolveStructure", telemetry.SpanAttributes{
		OrgID:     req.OrgID,
		Intent:    string(req.Intent),
		Operation: "resolve_structure",
	})
	defer span.End()

	sig := DeriveSignature(req.Template, req.Intent, req.FunnelStage)

	if req.UserSelected != nil {
		sel := req.UserSelected.Stripped()
		sel.Resolution = domain.ResolutionUserSelected
		sel.FitScore = ScoreStructure(sel, sig)
		metrics.StructureResolutionsTotal.WithLabelValues(string(sel.Resolution)).Inc()
		return domain.StructureResolution{
			Selected: sel,
			Scores:   []domain.ScoredStructure{{Candidate: sel, Score: sel.FitScore}},
			Rejected: []domain.ScoredStructure{},
		}
	}

	var canonical []domain.StructureCandidate
	if r.store != nil {
		list, err := r.store.ListCanonical(ctx, req.OrgID, req.Intent, req.FunnelStage, req.Platform)
		if err != nil {
			r.log.Warn("structure store failed, treating as no candidates", zap.Error(err))
			metrics.FallbacksTotal.WithLabelValues("structures").Inc()
		} else {
			canonical = list
		}
	}

	scores := make([]domain.ScoredStructure, 0, len(canonical))
	for _, c := range canonical {
		if c.IsEphemeral() || c.ID == "" {
			continue
		}
		c = c.Stripped()
		c.FitScore = ScoreStructure(c, sig)
		scores = append(scores, domain.ScoredStructure{Candidate: c, Score: c.FitScore})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Candidate.ID < scores[j].Candidate.ID
	})

	if len(scores) > 0 && scores[0].Score >= r.cfg.MinFitScore {
		sel := scores[0].Candidate
		sel.Resolution = domain.ResolutionAutoMatched
		metrics.StructureResolutionsTotal.WithLabelValues(string(sel.Resolution)).Inc()
		span.SetData("fit_score", sel.FitScore)
		return domain.StructureResolution{
			Selected: sel,
			Scores:   scores,
			Rejected: append([]domain.ScoredStructure{}, scores[1:]...),
		}
	}

	sel := r.ephemeral(ctx, req, sig)
	metrics.StructureResolutionsTotal.WithLabelValues(string(sel.Resolution)).Inc()
	span.SetData("fit_score", sel.FitScore)
	return domain.StructureResolution{
		Selected: sel,
		Scores:   scores,
		Rejected: append([]domain.ScoredStructure{}, scores...),
	}
}

func (r *StructureResolver) ephemeral(ctx context.Context, req ResolveRequest, sig domain.StructureSignature) domain.StructureCandidate {
	out := domain.StructureCandidate{
		Platform:    req.Platform,
		Intent:      req.Intent,
		FunnelStage: req.FunnelStage,
		Confidence:  domain.EphemeralConfidence,
		Resolution:  domain.ResolutionEphemeralFallback,
	}

	var gen GeneratedStructure
	var err error
	if r.generator != nil {
		gen, err = r.generator.Generate(ctx, EphemeralRequest{
			Prompt:   req.Prompt,
			Intent:   req.Intent,
			Funnel:   req.FunnelStage,
			Platform: req.Platform,
			Band:     sig.Band,
			Shape:    sig.Shape,
		})
	} else {
		err = domain.ErrGenerationUnavailable
	}

	sections := cleanSections(gen.Sections)
	switch {
	case err != nil:
		r.log.Warn("ephemeral structure generation failed, using skeleton", zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("generate").Inc()
		sections = nil
	case len(sections) == 0:
		r.log.Warn("ephemeral structure generation returned no sections, using skeleton")
	}

	if len(sections) == 0 {
		out.Sections = skeletonSections(sig.Shape, sig.Band)
		out.CTAType = "soft"
		out.ModelUsed = "skeleton"
	} else {
		out.Sections = sections
		out.CTAType = gen.CTAType
		out.ModelUsed = gen.ModelUsed
	}
	out.FitScore = ScoreStructure(out, sig)
	return out
}

func cleanSections(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var skeletons = map[domain.ShapeHint][]string{
	domain.ShapeStory:    {"hook", "setup", "conflict", "turning point", "lesson", "cta"},
	domain.ShapeList:     {"hook", "point one", "point two", "point three", "takeaway", "cta"},
	domain.ShapeArgument: {"claim", "evidence", "counterpoint", "rebuttal", "conclusion", "cta"},
	domain.ShapeNone:     {"hook", "body", "takeaway", "cta"},
}

// skeletonSections returns a fixed outline for the shape, trimmed or padded
// to the middle of the requested band. The first and last sections are kept.
func skeletonSections(shape domain.ShapeHint, band domain.LengthBand) []string {
	base, ok := skeletons[shape]
	if !ok {
		base = skeletons[domain.ShapeNone]
	}

	target := len(base)
	switch band {
	case domain.BandShort:
		target = 3
	case domain.BandMedium:
		target = 5
	case domain.BandLong:
		target = 7
	}

	out := append([]string(nil), base...)
	for len(out) > target {
		out = append(out[:len(out)-2], out[len(out)-1])
	}
	for len(out) < target {
		last := out[len(out)-1]
		out = append(out[:len(out)-1], "supporting detail", last)
	}
	return out
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

// AssemblyInput carries everything that competes for the token budget.
type AssemblyInput struct {
	Chunks          []domain.Candidate
	Enrichment      []domain.Chunk
	Facts           []domain.Fact
	VIPChunks       []domain.Chunk
	VIPFacts        []domain.Fact
	Structure       *domain.StructureCandidate
	Template        *domain.Template
	UserContext     string
	BusinessContext string
	// Budget overrides the configured token budget when positive.
	Budget int
}

// ContextAssembler merges retrieval output into a bounded GenerationContext.
type ContextAssembler struct {
	cfg RetrievalConfig
	log *zap.Logger
}

// NewContextAssembler creates a ContextAssembler.
func NewContextAssembler(cfg RetrievalConfig, log *zap.Logger) *ContextAssembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContextAssembler{cfg: cfg, log: log}
}

type budgetItem struct {
	category domain.Category
	index    int
	id       string
	tokens   int
	score    float64
}

func (b budgetItem) density() float64 {
	if b.tokens == 0 {
		return b.score
	}
	return b.score / float64(b.tokens)
}

// AssembleContext applies the budget in this order: template and structure
// reservation, VIP items until the first overflow, business context
// unconditionally, then the remaining items greedily by density. Items that
// do not fit are skipped, not truncated.
func (a *ContextAssembler) AssembleContext(ctx context.Context, in AssemblyInput) *domain.GenerationContext {
	_, span := telemetry.StartSpan(ctx, "ContextAssembler.AssembleContext", telemetry.SpanAttributes{Operation: "assemble"})
	defer span.End()

	budget := in.Budget
	if budget <= 0 {
		budget = a.cfg.TokenBudget
	}

	gc := &domain.GenerationContext{
		Chunks:           []domain.Chunk{},
		VIPChunks:        []domain.Chunk{},
		EnrichmentChunks: []domain.Chunk{},
		Facts:            []domain.Fact{},
		VIPFacts:         []domain.Fact{},
		Template:         in.Template,
		Budget:           budget,
		Decisions:        []domain.Decision{},
	}

	if in.Template != nil {
		if raw, err := json.Marshal(in.Template); err == nil {
			gc.TokenUsage.Add(domain.CategoryTemplate, EstimateTokens(string(raw)))
		}
	}
	if in.Structure != nil {
		s := in.Structure.Stripped()
		gc.Structure = &s
		gc.TokenUsage.Add(domain.CategoryStructure, EstimateTokens(s.JSON()))
	}

	vipChunkIDs := make(map[string]struct{}, len(in.VIPChunks))
	vipFactIDs := make(map[string]struct{}, len(in.VIPFacts))
	stopped := false

	for _, c := range in.VIPChunks {
		vipChunkIDs[c.ID] = struct{}{}
		gc.Provided.Inc(domain.CategoryVIPChunks)
		t := chunkTokens(c)
		if stopped || gc.TokenUsage.Total+t > budget {
			stopped = true
			a.prune(gc, domain.CategoryVIPChunks, c.ID, "vip_budget_exhausted")
			continue
		}
		gc.VIPChunks = append(gc.VIPChunks, c)
		gc.Used.Inc(domain.CategoryVIPChunks)
		gc.TokenUsage.Add(domain.CategoryVIPChunks, t)
	}
	for _, f := range in.VIPFacts {
		vipFactIDs[f.ID] = struct{}{}
		gc.Provided.Inc(domain.CategoryVIPFacts)
		t := factTokens(f)
		if stopped || gc.TokenUsage.Total+t > budget {
			stopped = true
			a.prune(gc, domain.CategoryVIPFacts, f.ID, "vip_budget_exhausted")
			continue
		}
		gc.VIPFacts = append(gc.VIPFacts, f)
		gc.Used.Inc(domain.CategoryVIPFacts)
		gc.TokenUsage.Add(domain.CategoryVIPFacts, t)
	}

	if in.BusinessContext != "" {
		gc.BusinessContext = in.BusinessContext
		gc.TokenUsage.Add(domain.CategoryBusinessContext, EstimateTokens(in.BusinessContext))
	}

	pool := a.buildPool(gc, in, vipChunkIDs, vipFactIDs)

	order := append([]budgetItem(nil), pool...)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].density() > order[j].density()
	})

	admitted := make(map[domain.Category]map[int]bool)
	for _, item := range order {
		if gc.TokenUsage.Total+item.tokens > budget {
			a.prune(gc, item.category, item.id, "budget")
			continue
		}
		if admitted[item.category] == nil {
			admitted[item.category] = make(map[int]bool)
		}
		admitted[item.category][item.index] = true
		gc.Used.Inc(item.category)
		gc.TokenUsage.Add(item.category, item.tokens)
		gc.Decisions = append(gc.Decisions, domain.Decision{
			Stage:   "assembly",
			Action:  "admitted",
			Reason:  string(item.category),
			ChunkID: item.id,
			Score:   item.score,
		})
	}

	// Admitted items keep their ranked order.
	for i, c := range in.Chunks {
		if admitted[domain.CategoryChunks][i] {
			gc.Chunks = append(gc.Chunks, c.Chunk)
		}
	}
	for i, c := range in.Enrichment {
		if admitted[domain.CategoryEnrichment][i] {
			gc.EnrichmentChunks = append(gc.EnrichmentChunks, c)
		}
	}
	for i, f := range in.Facts {
		if admitted[domain.CategoryFacts][i] {
			gc.Facts = append(gc.Facts, f)
		}
	}
	if admitted[domain.CategoryUserContext][0] {
		gc.UserContext = in.UserContext
	}

	metrics.ContextTokens.Observe(float64(gc.TokenUsage.Total))
	span.SetData("tokens", gc.TokenUsage.Total)
	a.log.Debug("context assembled",
		zap.Int("budget", budget),
		zap.Int("tokens", gc.TokenUsage.Total),
		zap.Int("chunks", len(gc.Chunks)),
		zap.Int("pruned_chunks", gc.Pruned.Chunks))
	return gc
}

// buildPool collects the prunable items, skipping anything also supplied as
// VIP and enrichment chunks already present among the ranked chunks.
func (a *ContextAssembler) buildPool(gc *domain.GenerationContext, in AssemblyInput, vipChunkIDs, vipFactIDs map[string]struct{}) []budgetItem {
	var pool []budgetItem
	seen := make(map[string]struct{})

	for i, c := range in.Chunks {
		if _, vip := vipChunkIDs[c.ID()]; vip {
			continue
		}
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		seen[c.ID()] = struct{}{}
		gc.Provided.Inc(domain.CategoryChunks)
		pool = append(pool, budgetItem{
			category: domain.CategoryChunks,
			index:    i,
			id:       c.ID(),
			tokens:   chunkTokens(c.Chunk),
			score:    c.Score,
		})
	}
	for i, c := range in.Enrichment {
		if _, vip := vipChunkIDs[c.ID]; vip {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		gc.Provided.Inc(domain.CategoryEnrichment)
		pool = append(pool, budgetItem{
			category: domain.CategoryEnrichment,
			index:    i,
			id:       c.ID,
			tokens:   chunkTokens(c),
			score:    a.cfg.EnrichmentScore,
		})
	}
	for i, f := range in.Facts {
		if _, vip := vipFactIDs[f.ID]; vip {
			continue
		}
		gc.Provided.Inc(domain.CategoryFacts)
		pool = append(pool, budgetItem{
			category: domain.CategoryFacts,
			index:    i,
			id:       f.ID,
			tokens:   factTokens(f),
			score:    f.Confidence,
		})
	}
	if in.UserContext != "" {
		gc.Provided.Inc(domain.CategoryUserContext)
		pool = append(pool, budgetItem{
			category: domain.CategoryUserContext,
			tokens:   EstimateTokens(in.UserContext),
			score:    a.cfg.UserTextScore,
		})
	}
	return pool
}

func (a *ContextAssembler) prune(gc *domain.GenerationContext, cat domain.Category, id, reason string) {
	gc.Pruned.Inc(cat)
	metrics.ContextPrunedTotal.WithLabelValues(string(cat)).Inc()
	gc.Decisions = append(gc.Decisions, domain.Decision{
		Stage:   "assembly",
		Action:  "pruned",
		Reason:  reason,
		ChunkID: id,
	})
}

// EnsureViable returns ErrInsufficientContext when generation should not be
// attempted. The condition is terminal: retrying with the same inputs fails
// the same way.
func EnsureViable(gc *domain.GenerationContext) error {
	if gc.IsViable() {
		return nil
	}
	reason := "no knowledge chunk, fact or user text survived assembly"
	if gc == nil || gc.Template == nil {
		reason = "no template"
	}
	return domain.NewDomainErrorWithCause(
		domain.ErrInsufficientContext.Code,
		domain.ErrInsufficientContext.Message,
		errors.New(reason),
	)
}

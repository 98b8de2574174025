package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

// PrepareRequest is everything a caller supplies for one generation.
type PrepareRequest struct {
	OrgID          string
	UserID         string
	Query          string
	Intent         domain.Intent
	FunnelStage    domain.FunnelStage
	Platform       string
	Limit          int
	Roles          []domain.ChunkRole
	FolderIDs      []string
	KnowledgeItems []string

	Template              *domain.Template
	UserSelectedStructure *domain.StructureCandidate

	VIPChunks       []domain.Chunk
	VIPFacts        []domain.Fact
	UserContext     string
	BusinessContext string
	Budget          int
	EnrichmentLimit int
	FactLimit       int
}

// PrepareResult is the outcome of GenerationPipeline.Prepare.
type PrepareResult struct {
	Context        *domain.GenerationContext
	Retrieval      domain.RetrievalResult
	Structure      domain.StructureResolution
	Classification domain.Classification
	TraceKey       string
}

// GenerationPipeline prepares a bounded generation context for one request.
type GenerationPipeline struct {
	retrieval *RetrievalService
	resolver  *StructureResolver
	assembler *ContextAssembler
	logs      RetrievalLogRepository
	archive   TraceArchive
	log       *zap.Logger
}

// NewGenerationPipeline creates a pipeline. logs and archive may be nil.
func NewGenerationPipeline(
	retrieval *RetrievalService,
	resolver *StructureResolver,
	assembler *ContextAssembler,
	logs RetrievalLogRepository,
	archive TraceArchive,
	log *zap.Logger,
) *GenerationPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerationPipeline{
		retrieval: retrieval,
		resolver:  resolver,
		assembler: assembler,
		logs:      logs,
		archive:   archive,
		log:       log,
	}
}

// Prepare classifies the query once, runs retrieval and structure resolution
// concurrently from that classification, then enrichment, facts and assembly.
// An explicit FunnelStage overrides the classified one for structure fit. The returned context is populated even when
// the error is ErrInsufficientContext.
func (p *GenerationPipeline) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "GenerationPipeline.Prepare", telemetry.SpanAttributes{
		OrgID:     req.OrgID,
		UserID:    req.UserID,
		Intent:    string(req.Intent),
		Operation: "prepare",
	})
	defer span.End()

	start := time.Now()

	if req.OrgID == "" {
		span.SetError(domain.ErrMissingOrgID)
		return nil, domain.ErrMissingOrgID
	}
	if req.Query == "" {
		span.SetError(domain.ErrMissingQuery)
		return nil, domain.ErrMissingQuery
	}

	// Search and structure fit both work from one classification.
	classification := p.retrieval.Classifier().Classify(ctx, req.Query, req.Intent)
	funnel := classification.FunnelStage
	if stage, ok := domain.ParseFunnelStage(string(req.FunnelStage)); ok {
		funnel = stage
	}

	var (
		retrieval domain.RetrievalResult
		structure domain.StructureResolution
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.retrieval.RetrieveKnowledgeChunks(gctx, domain.RetrievalRequest{
			OrgID:          req.OrgID,
			UserID:         req.UserID,
			Query:          req.Query,
			Intent:         req.Intent,
			Limit:          req.Limit,
			Roles:          req.Roles,
			FolderIDs:      req.FolderIDs,
			KnowledgeItems: req.KnowledgeItems,
			Classification: &classification,
		})
		if err != nil {
			return fmt.Errorf("retrieve knowledge chunks: %w", err)
		}
		retrieval = res
		return nil
	})
	g.Go(func() error {
		structure = p.resolver.ResolveStructure(gctx, ResolveRequest{
			OrgID:        req.OrgID,
			Intent:       classification.Intent,
			FunnelStage:  funnel,
			Platform:     req.Platform,
			Prompt:       req.Query,
			Template:     req.Template,
			UserSelected: req.UserSelectedStructure,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	selected := retrieval.Chunks()
	enrichment := p.retrieval.EnrichForChunks(ctx, selected, req.EnrichmentLimit)
	facts := p.retrieval.RetrieveBusinessFacts(ctx, req.OrgID, req.UserID, req.FactLimit)

	sel := structure.Selected
	gc := p.assembler.AssembleContext(ctx, AssemblyInput{
		Chunks:          retrieval.Candidates,
		Enrichment:      enrichment,
		Facts:           facts,
		VIPChunks:       req.VIPChunks,
		VIPFacts:        req.VIPFacts,
		Structure:       &sel,
		Template:        req.Template,
		UserContext:     req.UserContext,
		BusinessContext: req.BusinessContext,
		Budget:          req.Budget,
	})

	decisions := make([]domain.Decision, 0, len(retrieval.Decisions)+len(gc.Decisions)+1)
	decisions = append(decisions, retrieval.Decisions...)
	decisions = append(decisions, domain.Decision{
		Stage:  "structure",
		Action: string(sel.Resolution),
		Reason: sel.ID,
		Score:  float64(sel.FitScore),
	})
	decisions = append(decisions, gc.Decisions...)
	gc.Decisions = decisions

	result := &PrepareResult{
		Context:        gc,
		Retrieval:      retrieval,
		Structure:      structure,
		Classification: retrieval.Classification,
		TraceKey:       traceKey(req.OrgID, start),
	}

	viableErr := EnsureViable(gc)
	p.record(ctx, req, result, viableErr == nil, time.Since(start))

	if viableErr != nil {
		p.log.Info("insufficient context for generation",
			zap.String("org_id", req.OrgID),
			zap.Error(viableErr))
		return result, viableErr
	}
	return result, nil
}

func traceKey(orgID string, at time.Time) string {
	return fmt.Sprintf("traces/%s/%s/%s.json", orgID, at.UTC().Format("2006/01/02"), uuid.NewString())
}

// record writes the retrieval log and archives the trace. Both are best
// effort and never fail the request.
func (p *GenerationPipeline) record(ctx context.Context, req PrepareRequest, res *PrepareResult, viable bool, took time.Duration) {
	if p.archive != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"org_id":         req.OrgID,
			"query":          req.Query,
			"classification": res.Classification,
			"expanded_terms": res.Retrieval.ExpandedTerms,
			"mode":           res.Retrieval.Mode,
			"decisions":      res.Context.Decisions,
			"token_usage":    res.Context.TokenUsage,
			"provided":       res.Context.Provided,
			"used":           res.Context.Used,
			"pruned":         res.Context.Pruned,
		})
		if err == nil {
			err = p.archive.PutTrace(ctx, res.TraceKey, payload)
		}
		if err != nil {
			p.log.Warn("trace archive failed", zap.String("key", res.TraceKey), zap.Error(err))
			res.TraceKey = ""
		}
	} else {
		res.TraceKey = ""
	}

	if p.logs == nil {
		return
	}

	results := make([]RetrievalLogResult, 0, len(res.Retrieval.Candidates))
	for _, c := range res.Retrieval.Candidates {
		results = append(results, RetrievalLogResult{
			ChunkID:        c.ID(),
			DocumentID:     c.DocumentID(),
			Distance:       c.Distance,
			Score:          c.Score,
			Protected:      c.Protected,
			RecallInjected: c.RecallInjected,
		})
	}

	_, err := p.logs.CreateRetrievalLog(ctx, RetrievalLogEntry{
		OrgID:       req.OrgID,
		UserID:      req.UserID,
		Query:       req.Query,
		Intent:      string(res.Classification.Intent),
		Domain:      res.Classification.Domain,
		FunnelStage: string(res.Classification.FunnelStage),
		Mode:        string(res.Retrieval.Mode),
		Structure:   string(res.Structure.Selected.Resolution),
		TokensUsed:  res.Context.TokenUsage.Total,
		Budget:      res.Context.Budget,
		Viable:      viable,
		TraceKey:    res.TraceKey,
		DurationMs:  int(took.Milliseconds()),
		Results:     results,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		p.log.Warn("retrieval log write failed", zap.Error(err))
	}
}

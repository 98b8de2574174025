package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

// EmbeddingProvider embeds text. It never fails: on provider errors it returns
// a deterministic vector flagged Degraded.
type EmbeddingProvider interface {
	EmbedOne(ctx context.Context, text string) domain.Embedding
	EmbedMany(ctx context.Context, texts []string) []domain.Embedding
}

// VectorStore is the chunk store behind retrieval.
type VectorStore interface {
	// Search returns at most limit hits ordered by ascending cosine distance.
	Search(ctx context.Context, vector []float32, filter domain.SearchFilter, limit int) ([]domain.SearchHit, error)
	// KeywordSearch returns at most limit unranked chunks whose text contains any term.
	KeywordSearch(ctx context.Context, terms []string, filter domain.SearchFilter, limit int) ([]domain.Chunk, error)
	// ChunksForItems returns the chunks of the given knowledge items with one of roles.
	ChunksForItems(ctx context.Context, orgID string, itemIDs []string, roles []domain.ChunkRole) ([]domain.Chunk, error)
}

// FactStore lists business facts.
type FactStore interface {
	ListFacts(ctx context.Context, orgID, userID string, limit int) ([]domain.Fact, error)
}

// RetrievalService retrieves, ranks and protects knowledge chunks.
type RetrievalService struct {
	classifier *QueryClassifier
	embedder   EmbeddingProvider
	store      VectorStore
	facts      FactStore
	cfg        RetrievalConfig
	log        *zap.Logger
}

// NewRetrievalService creates a RetrievalService with default configuration.
func NewRetrievalService(
	classifier *QueryClassifier,
	embedder EmbeddingProvider,
	store VectorStore,
	facts FactStore,
	log *zap.Logger,
) *RetrievalService {
	return NewRetrievalServiceWithConfig(classifier, embedder, store, facts, DefaultRetrievalConfig(), log)
}

// NewRetrievalServiceWithConfig creates a RetrievalService with explicit configuration.
func NewRetrievalServiceWithConfig(
	classifier *QueryClassifier,
	embedder EmbeddingProvider,
	store VectorStore,
	facts FactStore,
	cfg RetrievalConfig,
	log *zap.Logger,
) *RetrievalService {
	if log == nil {
		log = zap.NewNop()
	}
	if classifier == nil {
		classifier = NewQueryClassifier(nil, log)
	}
	return &RetrievalService{
		classifier: classifier,
		embedder:   embedder,
		store:      store,
		facts:      facts,
		cfg:        cfg,
		log:        log,
	}
}

// Config returns the configuration the service was built with.
func (s *RetrievalService) Config() RetrievalConfig {
	return s.cfg
}

// Classifier returns the query classifier.
func (s *RetrievalService) Classifier() *QueryClassifier {
	return s.classifier
}

// RetrieveKnowledgeChunks runs the full retrieval pipeline. Only invalid input
// produces an error; collaborator failures degrade to keyword search or an
// empty result.
func (s *RetrievalService) RetrieveKnowledgeChunks(ctx context.Context, req domain.RetrievalRequest) (domain.RetrievalResult, error) {
	if req.OrgID == "" {
		return domain.RetrievalResult{}, domain.ErrMissingOrgID
	}
	if req.Query == "" {
		return domain.RetrievalResult{}, domain.ErrMissingQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.RetrieveKnowledgeChunks", telemetry.SpanAttributes{
		OrgID:     req.OrgID,
		UserID:    req.UserID,
		Intent:    string(req.Intent),
		Operation: "retrieve",
	})
	defer span.End()

	start := time.Now()
	trace := &decisionTrace{}

	var classification domain.Classification
	if req.Classification != nil {
		classification = *req.Classification
	} else {
		classification = s.classifier.Classify(ctx, req.Query, req.Intent)
	}
	terms := ExpandQuery(req.Query, classification, s.cfg)
	trace.add(domain.Decision{
		Stage:  "classify",
		Action: classification.Source,
		Reason: fmt.Sprintf("intent=%s domain=%s funnel=%s", classification.Intent, classification.Domain, classification.FunnelStage),
	})

	result := domain.RetrievalResult{
		Classification: classification,
		ExpandedTerms:  terms,
	}

	filter := s.searchFilter(req)
	hits, err := s.vectorSearch(ctx, EmbeddingInput(terms), filter)
	if err != nil {
		s.log.Warn("vector search unavailable, using keyword search",
			zap.String("org_id", req.OrgID), zap.Error(err))
		trace.add(domain.Decision{Stage: "search", Action: "fallback", Reason: err.Error()})
		result.Candidates, result.Mode = s.keywordFallback(ctx, req.Query, filter, limit, trace)
		result.Decisions = trace.list()
		metrics.RetrievalDuration.WithLabelValues(string(result.Mode)).Observe(time.Since(start).Seconds())
		span.SetData("mode", string(result.Mode))
		return result, nil
	}

	cands := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		if !h.Chunk.Generatable() || !h.Chunk.IsActive {
			continue
		}
		cands = append(cands, domain.NewCandidate(h.Chunk, h.Distance))
	}

	flagCandidates(cands, s.cfg)
	scoreCandidates(cands, classification.Domain, s.cfg)
	for _, c := range cands {
		if c.Protected {
			trace.add(domain.Decision{
				Stage:      "near_match",
				Action:     "protected",
				ChunkID:    c.ID(),
				DocumentID: c.DocumentID(),
				Distance:   c.Distance,
				Score:      c.Score,
				Composite:  c.Composite,
			})
		}
	}

	window := rankWindow(cands, limit, s.cfg)
	window = reorderVariants(window, classification.Intent, s.cfg)
	selected := s.selectFinal(window, limit, trace)
	selected = s.injectRecall(ctx, selected, window, req.Query, limit, trace)
	s.checkNearMatches(ctx, window, selected, trace)

	for _, c := range selected {
		trace.add(domain.Decision{
			Stage:      "selection",
			Action:     "selected",
			ChunkID:    c.ID(),
			DocumentID: c.DocumentID(),
			Distance:   c.Distance,
			Score:      c.Score,
			Composite:  c.Composite,
		})
	}

	result.Candidates = selected
	result.Mode = domain.SearchModeVector
	result.Decisions = trace.list()

	metrics.RetrievalDuration.WithLabelValues(string(result.Mode)).Observe(time.Since(start).Seconds())
	span.SetData("candidates", len(cands))
	span.SetData("selected", len(selected))
	s.log.Debug("retrieval complete",
		zap.String("org_id", req.OrgID),
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(selected)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (s *RetrievalService) searchFilter(req domain.RetrievalRequest) domain.SearchFilter {
	roles := req.Roles
	if len(roles) == 0 {
		roles = s.cfg.AllowedRoles
	}
	return domain.SearchFilter{
		OrgID:          req.OrgID,
		UserID:         req.UserID,
		Roles:          roles,
		FolderIDs:      req.FolderIDs,
		KnowledgeItems: req.KnowledgeItems,
		MinTokens:      s.cfg.MinTokens,
		MinChars:       s.cfg.MinChars,
	}
}

func (s *RetrievalService) vectorSearch(ctx context.Context, input string, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	emb := s.embedder.EmbedOne(ctx, input)
	if emb.Degraded || len(emb.Vector) == 0 {
		metrics.FallbacksTotal.WithLabelValues("embed").Inc()
		return nil, domain.ErrEmbeddingUnavailable
	}
	hits, err := s.store.Search(ctx, emb.Vector, filter, s.cfg.TopN)
	if err != nil {
		metrics.FallbacksTotal.WithLabelValues("search").Inc()
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, domain.ErrSearchUnavailable.Message, err)
	}
	return hits, nil
}

// keywordFallback runs substring search without scoring, protection or
// injection. A failure here yields an empty result.
func (s *RetrievalService) keywordFallback(ctx context.Context, query string, filter domain.SearchFilter, limit int, trace *decisionTrace) ([]domain.Candidate, domain.SearchMode) {
	chunks, err := s.store.KeywordSearch(ctx, keywordTerms(query, 8), filter, limit)
	if err != nil {
		s.log.Warn("keyword search failed, returning empty result", zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("keyword_search").Inc()
		trace.add(domain.Decision{Stage: "keyword_search", Action: "fallback", Reason: err.Error()})
		return []domain.Candidate{}, domain.SearchModeEmpty
	}

	out := make([]domain.Candidate, 0, limit)
	seen := make(map[string]struct{}, len(chunks))
	for _, ch := range chunks {
		if len(out) >= limit {
			break
		}
		if !ch.Generatable() || !ch.IsActive {
			continue
		}
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, domain.NewCandidate(ch, 1))
		trace.add(domain.Decision{Stage: "keyword_search", Action: "selected", ChunkID: ch.ID, DocumentID: ch.KnowledgeItemID})
	}
	return out, domain.SearchModeKeyword
}

// checkNearMatches reports protected candidates missing from the selection.
// A miss is a correctness signal: it is logged at error level, counted and
// sent to Sentry, but the request continues.
func (s *RetrievalService) checkNearMatches(ctx context.Context, window, selected []domain.Candidate, trace *decisionTrace) {
	present := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		present[c.ID()] = struct{}{}
	}
	for _, c := range window {
		if !c.Protected {
			continue
		}
		if _, ok := present[c.ID()]; ok {
			continue
		}
		s.log.Error("protected near-match missing from final selection",
			zap.String("chunk_id", c.ID()),
			zap.String("document_id", c.DocumentID()),
			zap.Float64("distance", c.Distance),
			zap.Int("selected", len(selected)))
		metrics.NearMatchViolationsTotal.Inc()
		telemetry.CaptureMessage(ctx, fmt.Sprintf("near-match %s missing from selection (distance %.3f)", c.ID(), c.Distance))
		trace.add(domain.Decision{
			Stage:      "near_match",
			Action:     "violation",
			ChunkID:    c.ID(),
			DocumentID: c.DocumentID(),
			Distance:   c.Distance,
		})
	}
}

var enrichRolePriority = map[domain.ChunkRole]int{
	domain.RoleMetric:      0,
	domain.RoleInstruction: 1,
}

// EnrichForChunks returns metric and instruction chunks from the documents of
// the selected chunks, without vector search. Errors yield an empty list.
func (s *RetrievalService) EnrichForChunks(ctx context.Context, selected []domain.Chunk, limit int) []domain.Chunk {
	if limit <= 0 {
		limit = s.cfg.EnrichmentLimit
	}
	if len(selected) == 0 || limit <= 0 {
		return []domain.Chunk{}
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.EnrichForChunks", telemetry.SpanAttributes{
		OrgID:     selected[0].OrgID,
		Operation: "enrich",
	})
	defer span.End()

	order := make(map[string]int)
	var items []string
	exclude := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		exclude[c.ID] = struct{}{}
		if _, ok := order[c.KnowledgeItemID]; !ok {
			order[c.KnowledgeItemID] = len(items)
			items = append(items, c.KnowledgeItemID)
		}
	}

	chunks, err := s.store.ChunksForItems(ctx, selected[0].OrgID, items,
		[]domain.ChunkRole{domain.RoleMetric, domain.RoleInstruction})
	if err != nil {
		s.log.Warn("enrichment lookup failed", zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("enrich").Inc()
		return []domain.Chunk{}
	}

	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, skip := exclude[c.ID]; skip {
			continue
		}
		if !c.Generatable() || !c.IsActive {
			continue
		}
		if _, ok := enrichRolePriority[c.Role]; !ok {
			continue
		}
		if _, ok := order[c.KnowledgeItemID]; !ok {
			continue
		}
		exclude[c.ID] = struct{}{}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := order[out[i].KnowledgeItemID], order[out[j].KnowledgeItemID]
		if oi != oj {
			return oi < oj
		}
		pi, pj := enrichRolePriority[out[i].Role], enrichRolePriority[out[j].Role]
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RetrieveBusinessFacts returns the most confident facts. Errors yield an
// empty list.
func (s *RetrievalService) RetrieveBusinessFacts(ctx context.Context, orgID, userID string, limit int) []domain.Fact {
	if limit <= 0 {
		limit = s.cfg.FactLimit
	}
	if s.facts == nil || orgID == "" || limit <= 0 {
		return []domain.Fact{}
	}

	facts, err := s.facts.ListFacts(ctx, orgID, userID, limit)
	if err != nil {
		s.log.Warn("fact lookup failed", zap.String("org_id", orgID), zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("facts").Inc()
		return []domain.Fact{}
	}

	out := append([]domain.Fact(nil), facts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

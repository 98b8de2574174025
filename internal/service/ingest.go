package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// IngestChunk is a pre-annotated chunk supplied with an item.
type IngestChunk struct {
	Text          string  `yaml:"text"`
	Role          string  `yaml:"role"`
	Type          string  `yaml:"type"`
	Authority     string  `yaml:"authority"`
	TimeHorizon   string  `yaml:"time_horizon"`
	Domain        string  `yaml:"domain"`
	SourceVariant string  `yaml:"source_variant"`
	UsagePolicy   string  `yaml:"usage_policy"`
	Confidence    float64 `yaml:"confidence"`
}

type IngestFact struct {
	ID         string  `yaml:"id"`
	Text       string  `yaml:"text"`
	Confidence float64 `yaml:"confidence"`
}

// IngestItem is one knowledge item. Body is split into role "other" chunks
// that inherit the item's domain and authority; Chunks are stored as given.
type IngestItem struct {
	ID         string        `yaml:"id"`
	UserID     string        `yaml:"user_id"`
	FolderID   string        `yaml:"folder_id"`
	Title      string        `yaml:"title"`
	Confidence float64       `yaml:"confidence"`
	Domain     string        `yaml:"domain"`
	Authority  string        `yaml:"authority"`
	Body       string        `yaml:"body"`
	Chunks     []IngestChunk `yaml:"chunks"`
	Facts      []IngestFact  `yaml:"facts"`
}

type IngestStats struct {
	Items    int
	Chunks   int
	Facts    int
	Degraded int
}

// IngestService embeds and stores knowledge items.
type IngestService struct {
	tx       TxRunner
	embedder EmbeddingProvider
	split    SplitConfig
	log      *zap.Logger
}

func NewIngestService(tx TxRunner, embedder EmbeddingProvider, log *zap.Logger) *IngestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{tx: tx, embedder: embedder, split: DefaultSplitConfig(), log: log}
}

// Ingest writes each item, its chunks and its facts in one transaction per
// item. Chunks whose embedding degraded to the fallback vector are stored
// without a vector so they only surface through keyword search.
func (s *IngestService) Ingest(ctx context.Context, orgID string, items []IngestItem) (IngestStats, error) {
	var stats IngestStats
	if orgID == "" {
		return stats, domain.ErrMissingOrgID
	}

	for _, in := range items {
		item, chunks, facts, err := s.build(orgID, in)
		if err != nil {
			return stats, fmt.Errorf("item %q: %w", in.ID, err)
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		embeddings := s.embedder.EmbedMany(ctx, texts)
		for i := range chunks {
			if i >= len(embeddings) || embeddings[i].Degraded {
				stats.Degraded++
				continue
			}
			chunks[i].Embedding = embeddings[i].Vector
		}

		err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Items().CreateItem(ctx, item); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			if err := repos.Items().ReplaceChunks(ctx, item.ID, chunks); err != nil {
				return fmt.Errorf("replace chunks: %w", err)
			}
			for i := range facts {
				if err := repos.Facts().CreateFact(ctx, &facts[i]); err != nil {
					return fmt.Errorf("create fact %s: %w", facts[i].ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("item %q: %w", in.ID, err)
		}

		stats.Items++
		stats.Chunks += len(chunks)
		stats.Facts += len(facts)
		s.log.Info("knowledge item ingested",
			zap.String("org_id", orgID),
			zap.String("item_id", item.ID),
			zap.Int("chunks", len(chunks)),
			zap.Int("facts", len(facts)))
	}

	if stats.Degraded > 0 {
		s.log.Warn("chunks stored without vectors", zap.Int("count", stats.Degraded))
	}
	return stats, nil
}

func (s *IngestService) build(orgID string, in IngestItem) (*domain.KnowledgeItem, []domain.Chunk, []domain.Fact, error) {
	item := domain.NewKnowledgeItem(in.ID, orgID, in.Title, in.Confidence, time.Now().UTC())
	item.UserID = in.UserID
	item.FolderID = in.FolderID
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge item", err)
	}

	base := domain.Chunk{
		KnowledgeItemID: item.ID,
		OrgID:           orgID,
		UserID:          in.UserID,
		FolderID:        in.FolderID,
		IsActive:        true,
	}

	var chunks []domain.Chunk
	for _, c := range in.Chunks {
		chunk := base
		chunk.Text = c.Text
		chunk.Role = domain.ParseChunkRole(c.Role)
		chunk.Type, chunk.Authority, chunk.TimeHorizon, chunk.SourceVariant, chunk.UsagePolicy =
			domain.ParseChunkAnnotations(c.Type, c.Authority, c.TimeHorizon, c.SourceVariant, c.UsagePolicy)
		chunk.Domain = domain.NormalizeDomain(c.Domain)
		if chunk.Domain == "" {
			chunk.Domain = domain.NormalizeDomain(in.Domain)
		}
		chunk.Confidence = c.Confidence
		chunks = append(chunks, chunk)
	}
	for _, piece := range splitText(in.Body, s.split) {
		chunk := base
		chunk.Text = piece
		chunk.Role = domain.RoleOther
		chunk.Type, chunk.Authority, chunk.TimeHorizon, chunk.SourceVariant, chunk.UsagePolicy =
			domain.ParseChunkAnnotations("excerpt", in.Authority, "", "raw", "")
		chunk.Domain = domain.NormalizeDomain(in.Domain)
		chunk.Confidence = in.Confidence
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "item has no body or chunks")
	}
	for i := range chunks {
		chunks[i].TokenCount = EstimateTokens(chunks[i].Text)
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return nil, nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chunk", err)
		}
	}

	facts := make([]domain.Fact, 0, len(in.Facts))
	for _, f := range in.Facts {
		fact := domain.NewFact(f.ID, orgID, f.Text, f.Confidence)
		fact.UserID = in.UserID
		fact.KnowledgeItemID = item.ID
		fact.TokenCount = EstimateTokens(f.Text)
		if err := domain.ValidateFact(fact); err != nil {
			return nil, nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid fact", err)
		}
		facts = append(facts, *fact)
	}
	return item, chunks, facts, nil
}

package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// ChunkRepository stores knowledge chunks and serves vector and keyword search.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

const chunkColumns = `
	c.id::text, c.knowledge_item_id::text, c.org_id, c.user_id, c.folder_id, c.content,
	c.role, c.chunk_type, c.authority, c.confidence, k.confidence, c.time_horizon,
	c.token_count, c.domain, c.source_variant, c.usage_policy, c.is_active, c.created_at`

// CreateItem inserts a knowledge item. Existing items are updated in place.
func (r *ChunkRepository) CreateItem(ctx context.Context, item *domain.KnowledgeItem) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, org_id, user_id, folder_id, title, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, confidence = EXCLUDED.confidence, folder_id = EXCLUDED.folder_id`,
		item.ID,
		item.OrgID,
		nullableString(item.UserID),
		nullableString(item.FolderID),
		item.Title,
		item.Confidence,
		createdAt,
	)
	return err
}

// ReplaceChunks deletes existing chunks for a knowledge item and inserts new ones.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, itemID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE knowledge_item_id = $1`, itemID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var vec *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			vec = &v
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_chunks
				(knowledge_item_id, org_id, user_id, folder_id, content, role, chunk_type, authority,
				 confidence, time_horizon, token_count, domain, source_variant, usage_policy, is_active,
				 embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			itemID,
			c.OrgID,
			nullableString(c.UserID),
			nullableString(c.FolderID),
			c.Text,
			string(c.Role),
			string(c.Type),
			string(c.Authority),
			c.Confidence,
			string(c.TimeHorizon),
			c.TokenCount,
			nullableString(c.Domain),
			string(c.SourceVariant),
			string(c.UsagePolicy),
			c.IsActive,
			vec,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Search returns the nearest generatable chunks by cosine distance.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	var args queryArgs
	vec := args.add(pgvector.NewVector(vector))
	where := buildChunkFilter(&args, filter)

	query := `SELECT ` + chunkColumns + `, c.embedding <=> ` + vec + ` AS distance
		FROM knowledge_chunks c
		JOIN knowledge_items k ON k.id = c.knowledge_item_id
		WHERE c.embedding IS NOT NULL AND ` + where + `
		ORDER BY distance ASC, c.id
		LIMIT ` + args.add(limit)

	rows, err := r.db.Query(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []domain.SearchHit{}
	for rows.Next() {
		var h domain.SearchHit
		if err := scanChunk(rows, &h.Chunk, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// KeywordSearch returns chunks whose content contains any of the terms.
func (r *ChunkRepository) KeywordSearch(ctx context.Context, terms []string, filter domain.SearchFilter, limit int) ([]domain.Chunk, error) {
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			patterns = append(patterns, "%"+likeEscaper.Replace(t)+"%")
		}
	}
	if len(patterns) == 0 || limit <= 0 {
		return []domain.Chunk{}, nil
	}

	var args queryArgs
	where := buildChunkFilter(&args, filter)

	query := `SELECT ` + chunkColumns + `
		FROM knowledge_chunks c
		JOIN knowledge_items k ON k.id = c.knowledge_item_id
		WHERE ` + where + ` AND c.content ILIKE ANY(` + args.add(patterns) + `)
		ORDER BY c.created_at DESC, c.id
		LIMIT ` + args.add(limit)

	return r.queryChunks(ctx, query, args.values...)
}

// ChunksForItems returns active chunks of the given items with one of roles.
func (r *ChunkRepository) ChunksForItems(ctx context.Context, orgID string, itemIDs []string, roles []domain.ChunkRole) ([]domain.Chunk, error) {
	if len(itemIDs) == 0 {
		return []domain.Chunk{}, nil
	}

	var args queryArgs
	query := `SELECT ` + chunkColumns + `
		FROM knowledge_chunks c
		JOIN knowledge_items k ON k.id = c.knowledge_item_id
		WHERE c.org_id = ` + args.add(orgID) + `
		  AND c.is_active
		  AND c.usage_policy <> 'never_generate'
		  AND c.knowledge_item_id = ANY(` + args.add(itemIDs) + `)`
	if len(roles) > 0 {
		query += ` AND c.role = ANY(` + args.add(roleStrings(roles)) + `)`
	}
	query += ` ORDER BY c.knowledge_item_id, c.created_at, c.id`

	return r.queryChunks(ctx, query, args.values...)
}

func (r *ChunkRepository) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// buildChunkFilter renders the store-level filters shared by vector and
// keyword search. Organization scoping is always applied.
func buildChunkFilter(args *queryArgs, f domain.SearchFilter) string {
	clauses := []string{
		"c.org_id = " + args.add(f.OrgID),
		"c.is_active",
		"c.usage_policy <> 'never_generate'",
	}
	if f.UserID != "" {
		clauses = append(clauses, "(c.user_id IS NULL OR c.user_id = "+args.add(f.UserID)+")")
	}
	if len(f.Roles) > 0 {
		clauses = append(clauses, "c.role = ANY("+args.add(roleStrings(f.Roles))+")")
	}
	if len(f.FolderIDs) > 0 {
		clauses = append(clauses, "c.folder_id = ANY("+args.add(f.FolderIDs)+")")
	}
	if len(f.KnowledgeItems) > 0 {
		clauses = append(clauses, "c.knowledge_item_id = ANY("+args.add(f.KnowledgeItems)+")")
	}
	if f.MinTokens > 0 {
		clauses = append(clauses, "c.token_count >= "+args.add(f.MinTokens))
	}
	if f.MinChars > 0 {
		clauses = append(clauses, "char_length(c.content) >= "+args.add(f.MinChars))
	}
	return strings.Join(clauses, " AND ")
}

func roleStrings(roles []domain.ChunkRole) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func scanChunk(row pgx.Row, c *domain.Chunk, extra ...any) error {
	var userID, folderID, dom *string
	var role, chunkType, authority, horizon, variant, policy string
	dest := []any{
		&c.ID, &c.KnowledgeItemID, &c.OrgID, &userID, &folderID, &c.Text,
		&role, &chunkType, &authority, &c.Confidence, &c.ItemConfidence, &horizon,
		&c.TokenCount, &dom, &variant, &policy, &c.IsActive, &c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	c.UserID = derefString(userID)
	c.FolderID = derefString(folderID)
	c.Domain = derefString(dom)
	c.Role = domain.ChunkRole(role)
	c.Type = domain.ChunkType(chunkType)
	c.Authority = domain.Authority(authority)
	c.TimeHorizon = domain.TimeHorizon(horizon)
	c.SourceVariant = domain.SourceVariant(variant)
	c.UsagePolicy = domain.UsagePolicy(policy)
	return nil
}

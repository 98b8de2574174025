package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// FactRepository stores structured business facts.
type FactRepository struct {
	db dbtx
}

func NewFactRepository(pool *pgxpool.Pool) *FactRepository {
	return &FactRepository{db: pool}
}

func (r *FactRepository) CreateFact(ctx context.Context, f *domain.Fact) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO business_facts (id, org_id, user_id, text, confidence, knowledge_item_id, token_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET text = EXCLUDED.text, confidence = EXCLUDED.confidence, token_count = EXCLUDED.token_count`,
		f.ID,
		f.OrgID,
		nullableString(f.UserID),
		f.Text,
		f.Confidence,
		nullableString(f.KnowledgeItemID),
		f.TokenCount,
	)
	return err
}

// ListFacts returns organization-wide facts plus those owned by userID,
// highest confidence first.
func (r *FactRepository) ListFacts(ctx context.Context, orgID, userID string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		return []domain.Fact{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, user_id, text, confidence, knowledge_item_id, token_count
		 FROM business_facts
		 WHERE org_id = $1 AND (user_id IS NULL OR user_id = $2)
		 ORDER BY confidence DESC, id
		 LIMIT $3`,
		orgID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := []domain.Fact{}
	for rows.Next() {
		var f domain.Fact
		var uid, itemID *string
		if err := rows.Scan(&f.ID, &f.OrgID, &uid, &f.Text, &f.Confidence, &itemID, &f.TokenCount); err != nil {
			return nil, err
		}
		f.UserID = derefString(uid)
		f.KnowledgeItemID = derefString(itemID)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

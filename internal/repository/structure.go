package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

const maxCanonicalStructures = 50

// StructureRepository reads canonical swipe structures. Ephemeral structures
// have no write path.
type StructureRepository struct {
	db dbtx
}

func NewStructureRepository(pool *pgxpool.Pool) *StructureRepository {
	return &StructureRepository{db: pool}
}

// CreateCanonical stores a curated structure, replacing one with the same id.
func (r *StructureRepository) CreateCanonical(ctx context.Context, s *domain.StructureCandidate) error {
	if s.IsEphemeral() {
		return fmt.Errorf("ephemeral structures are not stored")
	}
	sections, err := json.Marshal(s.Sections)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO swipe_structures (id, org_id, platform, intent, funnel_stage, cta_type, sections, confidence, raw_text, is_canonical)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		 ON CONFLICT (id) DO UPDATE
		 SET platform = EXCLUDED.platform, intent = EXCLUDED.intent, funnel_stage = EXCLUDED.funnel_stage,
		     cta_type = EXCLUDED.cta_type, sections = EXCLUDED.sections, confidence = EXCLUDED.confidence,
		     raw_text = EXCLUDED.raw_text`,
		s.ID,
		s.OrgID,
		nullableString(s.Platform),
		nullableString(string(s.Intent)),
		nullableString(string(s.FunnelStage)),
		nullableString(s.CTAType),
		sections,
		s.Confidence,
		nullableString(s.RawText),
	)
	return err
}

// ListCanonical returns the organization's canonical structures. Intent and
// funnel stage rank matching rows first; platform filters when set.
func (r *StructureRepository) ListCanonical(ctx context.Context, orgID string, intent domain.Intent, funnel domain.FunnelStage, platform string) ([]domain.StructureCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, platform, intent, funnel_stage, cta_type, sections, confidence
		 FROM swipe_structures
		 WHERE org_id = $1 AND is_canonical
		   AND ($4 = '' OR platform IS NULL OR platform = $4)
		 ORDER BY COALESCE(intent = $2, FALSE)::int + COALESCE(funnel_stage = $3, FALSE)::int DESC, confidence DESC, id
		 LIMIT $5`,
		orgID, string(intent), string(funnel), platform, maxCanonicalStructures,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.StructureCandidate{}
	for rows.Next() {
		var s domain.StructureCandidate
		var plat, in, fs, cta *string
		var sections []byte
		if err := rows.Scan(&s.ID, &s.OrgID, &plat, &in, &fs, &cta, &sections, &s.Confidence); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sections, &s.Sections); err != nil {
			return nil, fmt.Errorf("decode sections of structure %s: %w", s.ID, err)
		}
		s.Platform = derefString(plat)
		s.Intent = domain.Intent(derefString(in))
		s.FunnelStage = domain.FunnelStage(derefString(fs))
		s.CTAType = derefString(cta)
		out = append(out, s)
	}
	return out, rows.Err()
}

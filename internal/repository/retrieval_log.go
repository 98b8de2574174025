package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/knowctx/internal/pagination"
	"github.com/cloo-solutions/knowctx/internal/service"
)

// RetrievalLogRepository stores retrieval logs for evaluation loops.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	classification := map[string]any{
		"intent":       entry.Intent,
		"domain":       entry.Domain,
		"funnel_stage": entry.FunnelStage,
		"query_length": len(entry.Query),
	}

	classificationJSON, _ := json.Marshal(classification)
	resultsJSON, _ := json.Marshal(entry.Results)

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs
			(org_id, user_id, query, classification, mode, structure_resolution, tokens_used, budget,
			 viable, trace_key, results, result_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id::text`,
		entry.OrgID,
		nullableString(entry.UserID),
		entry.Query,
		classificationJSON,
		entry.Mode,
		nullableString(entry.Structure),
		entry.TokensUsed,
		entry.Budget,
		entry.Viable,
		nullableString(entry.TraceKey),
		resultsJSON,
		len(entry.Results),
		entry.DurationMs,
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListRetrievalLogs returns an org's logs newest first, starting after the
// cursor when one is given. At most limit rows are returned.
func (r *RetrievalLogRepository) ListRetrievalLogs(ctx context.Context, orgID string, after *pagination.Cursor, limit int) ([]service.RetrievalLogEntry, error) {
	var args queryArgs
	where := "org_id = " + args.add(orgID)
	if after != nil {
		where += " AND (created_at, id) < (" + args.add(after.Timestamp) + ", " + args.add(after.LastID) + "::uuid)"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id::text, org_id, user_id, query, classification, mode, structure_resolution,
			tokens_used, budget, viable, trace_key, results, duration_ms, created_at
		 FROM retrieval_logs
		 WHERE `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT `+args.add(limit),
		args.values...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []service.RetrievalLogEntry{}
	for rows.Next() {
		var e service.RetrievalLogEntry
		var userID, structure, trace *string
		var classificationJSON, resultsJSON []byte
		if err := rows.Scan(&e.ID, &e.OrgID, &userID, &e.Query, &classificationJSON, &e.Mode, &structure,
			&e.TokensUsed, &e.Budget, &e.Viable, &trace, &resultsJSON, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserID = derefString(userID)
		e.Structure = derefString(structure)
		e.TraceKey = derefString(trace)

		var classification struct {
			Intent      string `json:"intent"`
			Domain      string `json:"domain"`
			FunnelStage string `json:"funnel_stage"`
		}
		if err := json.Unmarshal(classificationJSON, &classification); err == nil {
			e.Intent = classification.Intent
			e.Domain = classification.Domain
			e.FunnelStage = classification.FunnelStage
		}
		if err := json.Unmarshal(resultsJSON, &e.Results); err != nil {
			e.Results = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/api/middleware"
	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/pagination"
	"github.com/cloo-solutions/knowctx/internal/service"
)

type RetrievalLogLister interface {
	ListRetrievalLogs(ctx context.Context, orgID string, after *pagination.Cursor, limit int) ([]service.RetrievalLogEntry, error)
}

type LogHandler struct {
	logs RetrievalLogLister
}

func NewLogHandler(logs RetrievalLogLister) *LogHandler {
	return &LogHandler{logs: logs}
}

type RetrievalLogResponse struct {
	ID          string                       `json:"id"`
	UserID      string                       `json:"user_id,omitempty"`
	Query       string                       `json:"query"`
	Intent      string                       `json:"intent"`
	Domain      string                       `json:"domain"`
	FunnelStage string                       `json:"funnel_stage"`
	Mode        string                       `json:"mode"`
	Structure   string                       `json:"structure,omitempty"`
	TokensUsed  int                          `json:"tokens_used"`
	Budget      int                          `json:"budget"`
	Viable      bool                         `json:"viable"`
	TraceKey    string                       `json:"trace_key,omitempty"`
	DurationMs  int                          `json:"duration_ms"`
	Results     []service.RetrievalLogResult `json:"results"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// List handles GET /v1/retrieval-logs?limit=&cursor=
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.HandleError(w, domain.ErrMissingOrgID)
		return
	}

	q := r.URL.Query()
	limit := pagination.ParseLimit(q.Get("limit"))
	cursor, err := pagination.DecodeCursor(q.Get("cursor"))
	if err != nil {
		api.HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err))
		return
	}

	entries, err := h.logs.ListRetrievalLogs(r.Context(), orgID, cursor, limit+1)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		api.HandleError(w, err)
		return
	}

	out := make([]RetrievalLogResponse, 0, len(entries))
	for _, e := range entries {
		results := e.Results
		if results == nil {
			results = []service.RetrievalLogResult{}
		}
		out = append(out, RetrievalLogResponse{
			ID:          e.ID,
			UserID:      e.UserID,
			Query:       e.Query,
			Intent:      e.Intent,
			Domain:      e.Domain,
			FunnelStage: e.FunnelStage,
			Mode:        e.Mode,
			Structure:   e.Structure,
			TokensUsed:  e.TokensUsed,
			Budget:      e.Budget,
			Viable:      e.Viable,
			TraceKey:    e.TraceKey,
			DurationMs:  e.DurationMs,
			Results:     results,
			CreatedAt:   e.CreatedAt,
		})
	}

	api.Success(w, http.StatusOK, pagination.NewPage(out, limit,
		func(e RetrievalLogResponse) string { return e.ID },
		func(e RetrievalLogResponse) time.Time { return e.CreatedAt },
	))
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/api/middleware"
	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/service"
)

type ContextPreparer interface {
	Prepare(ctx context.Context, req service.PrepareRequest) (*service.PrepareResult, error)
}

// TraceLocator signs download URLs for archived traces.
type TraceLocator interface {
	TraceURL(ctx context.Context, key string) (string, error)
}

type ContextHandler struct {
	svc    ContextPreparer
	traces TraceLocator
}

// NewContextHandler creates a context handler. traces may be nil.
func NewContextHandler(svc ContextPreparer, traces TraceLocator) *ContextHandler {
	return &ContextHandler{svc: svc, traces: traces}
}

type PrepareContextRequest struct {
	Query            string           `json:"query"`
	Intent           string           `json:"intent,omitempty"`
	FunnelStage      string           `json:"funnel_stage,omitempty"`
	Platform         string           `json:"platform,omitempty"`
	Limit            int              `json:"limit,omitempty"`
	Roles            []string         `json:"roles,omitempty"`
	FolderIDs        []string         `json:"folder_ids,omitempty"`
	KnowledgeItemIDs []string         `json:"knowledge_item_ids,omitempty"`
	Template         *domain.Template `json:"template,omitempty"`
	Structure        *StructureInput  `json:"structure,omitempty"`
	VIPChunks        []ChunkInput     `json:"vip_chunks,omitempty"`
	VIPFacts         []FactInput      `json:"vip_facts,omitempty"`
	UserContext      string           `json:"user_context,omitempty"`
	BusinessContext  string           `json:"business_context,omitempty"`
	Budget           int              `json:"budget,omitempty"`
}

type GenerationContextResponse struct {
	Chunks           []ChunkResponse            `json:"chunks"`
	VIPChunks        []ChunkResponse            `json:"vip_chunks"`
	EnrichmentChunks []ChunkResponse            `json:"enrichment_chunks"`
	Facts            []FactResponse             `json:"facts"`
	VIPFacts         []FactResponse             `json:"vip_facts"`
	Structure        *domain.StructureCandidate `json:"structure,omitempty"`
	Template         *domain.Template           `json:"template,omitempty"`
	UserContext      string                     `json:"user_context,omitempty"`
	BusinessContext  string                     `json:"business_context,omitempty"`
	Budget           int                        `json:"budget"`
	TokenUsage       domain.TokenUsage          `json:"token_usage"`
	Provided         domain.ItemCounts          `json:"provided"`
	Used             domain.ItemCounts          `json:"used"`
	Pruned           domain.ItemCounts          `json:"pruned"`
	Classification   ClassificationResponse     `json:"classification"`
	Mode             string                     `json:"mode"`
	TraceKey         string                     `json:"trace_key,omitempty"`
}

type TraceURLResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Prepare handles POST /v1/context. Insufficient context is reported as 422.
func (h *ContextHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.HandleError(w, domain.ErrMissingOrgID)
		return
	}

	var req PrepareContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := parseIntent(req.Intent)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	funnel, err := parseFunnel(req.FunnelStage)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	selected, err := toStructure(orgID, req.Structure)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	res, err := h.svc.Prepare(r.Context(), service.PrepareRequest{
		OrgID:                 orgID,
		UserID:                middleware.GetUserID(r.Context()),
		Query:                 req.Query,
		Intent:                intent,
		FunnelStage:           funnel,
		Platform:              req.Platform,
		Limit:                 req.Limit,
		Roles:                 parseRoles(req.Roles),
		FolderIDs:             req.FolderIDs,
		KnowledgeItems:        req.KnowledgeItemIDs,
		Template:              req.Template,
		UserSelectedStructure: selected,
		VIPChunks:             toVIPChunks(orgID, req.VIPChunks),
		VIPFacts:              toVIPFacts(orgID, req.VIPFacts),
		UserContext:           req.UserContext,
		BusinessContext:       req.BusinessContext,
		Budget:                req.Budget,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientContext) && res != nil {
			api.JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": err.Error(),
				"code":  domain.ErrCodeInsufficientContext,
				"data":  toContextResponse(res),
			})
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toContextResponse(res))
}

// TraceURL handles GET /v1/traces?key=... for traces of the caller's org.
func (h *ContextHandler) TraceURL(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.HandleError(w, domain.ErrMissingOrgID)
		return
	}
	if h.traces == nil {
		api.Error(w, http.StatusNotImplemented, "trace archive not configured")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		api.HandleError(w, domain.NewDomainError(domain.ErrCodeValidation, "key is required"))
		return
	}
	if !strings.HasPrefix(key, "traces/"+orgID+"/") {
		api.Error(w, http.StatusNotFound, "trace not found")
		return
	}

	url, err := h.traces.TraceURL(r.Context(), key)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, TraceURLResponse{Key: key, URL: url})
}

func toContextResponse(res *service.PrepareResult) GenerationContextResponse {
	gc := res.Context
	return GenerationContextResponse{
		Chunks:           toChunkResponses(gc.Chunks),
		VIPChunks:        toChunkResponses(gc.VIPChunks),
		EnrichmentChunks: toChunkResponses(gc.EnrichmentChunks),
		Facts:            toFactResponses(gc.Facts),
		VIPFacts:         toFactResponses(gc.VIPFacts),
		Structure:        gc.Structure,
		Template:         gc.Template,
		UserContext:      gc.UserContext,
		BusinessContext:  gc.BusinessContext,
		Budget:           gc.Budget,
		TokenUsage:       gc.TokenUsage,
		Provided:         gc.Provided,
		Used:             gc.Used,
		Pruned:           gc.Pruned,
		Classification:   toClassificationResponse(res.Classification),
		Mode:             string(res.Retrieval.Mode),
		TraceKey:         res.TraceKey,
	}
}

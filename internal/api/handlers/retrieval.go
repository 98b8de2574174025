package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/api/middleware"
	"github.com/cloo-solutions/knowctx/internal/domain"
)

type Retriever interface {
	RetrieveKnowledgeChunks(ctx context.Context, req domain.RetrievalRequest) (domain.RetrievalResult, error)
}

type RetrievalHandler struct {
	svc Retriever
}

func NewRetrievalHandler(svc Retriever) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

type RetrieveRequest struct {
	Query            string   `json:"query"`
	Intent           string   `json:"intent,omitempty"`
	Limit            int      `json:"limit,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	FolderIDs        []string `json:"folder_ids,omitempty"`
	KnowledgeItemIDs []string `json:"knowledge_item_ids,omitempty"`
	Trace            bool     `json:"trace,omitempty"`
}

// Retrieve handles POST /v1/retrieve.
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.HandleError(w, domain.ErrMissingOrgID)
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := parseIntent(req.Intent)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	res, err := h.svc.RetrieveKnowledgeChunks(r.Context(), domain.RetrievalRequest{
		OrgID:          orgID,
		UserID:         middleware.GetUserID(r.Context()),
		Query:          req.Query,
		Intent:         intent,
		Limit:          req.Limit,
		Roles:          parseRoles(req.Roles),
		FolderIDs:      req.FolderIDs,
		KnowledgeItems: req.KnowledgeItemIDs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toRetrievalResponse(res, req.Trace))
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/api/middleware"
	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/service"
)

type StructureResolver interface {
	ResolveStructure(ctx context.Context, req service.ResolveRequest) domain.StructureResolution
}

type StructureHandler struct {
	svc StructureResolver
}

func NewStructureHandler(svc StructureResolver) *StructureHandler {
	return &StructureHandler{svc: svc}
}

type ResolveStructureRequest struct {
	Prompt       string           `json:"prompt"`
	Intent       string           `json:"intent,omitempty"`
	FunnelStage  string           `json:"funnel_stage,omitempty"`
	Platform     string           `json:"platform,omitempty"`
	Template     *domain.Template `json:"template,omitempty"`
	UserSelected *StructureInput  `json:"user_selected,omitempty"`
}

// Resolve handles POST /v1/structures/resolve. Resolution never fails once
// the request is valid.
func (h *StructureHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.HandleError(w, domain.ErrMissingOrgID)
		return
	}

	var req ResolveStructureRequest
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
	selected, err := toStructure(orgID, req.UserSelected)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	hint := service.HeuristicClassify(req.Prompt, intent)
	if intent == "" {
		intent = hint.Intent
	}
	if funnel == "" {
		funnel = hint.FunnelStage
	}

	res := h.svc.ResolveStructure(r.Context(), service.ResolveRequest{
		OrgID:        orgID,
		Intent:       intent,
		FunnelStage:  funnel,
		Platform:     req.Platform,
		Prompt:       req.Prompt,
		Template:     req.Template,
		UserSelected: selected,
	})

	api.Success(w, http.StatusOK, res)
}

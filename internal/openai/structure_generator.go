package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/service"
)

const structurePrompt = `You design the section outline of a social media post.
Answer with a JSON object: {"sections": [string, ...], "cta_type": string}.
Each section is a short lowercase label such as "hook" or "lesson".
cta_type is "none", "soft" or "direct".`

type generatedStructure struct {
	Sections []string `json:"sections"`
	CTAType  string   `json:"cta_type"`
}

// StructureGenerator synthesizes ephemeral structures with a chat model.
type StructureGenerator struct {
	chat *ChatClient
}

// NewStructureGenerator creates a generator backed by chat.
func NewStructureGenerator(chat *ChatClient) *StructureGenerator {
	return &StructureGenerator{chat: chat}
}

func structureUserPrompt(req service.EphemeralRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Prompt)
	if req.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", req.Platform)
	}
	if req.Intent != "" {
		fmt.Fprintf(&b, "Intent: %s\n", req.Intent)
	}
	if req.Funnel != "" {
		fmt.Fprintf(&b, "Funnel stage: %s\n", req.Funnel)
	}
	switch req.Band {
	case domain.BandShort:
		b.WriteString("Length: 1 to 3 sections\n")
	case domain.BandMedium:
		b.WriteString("Length: 4 to 6 sections\n")
	case domain.BandLong:
		b.WriteString("Length: 7 or more sections\n")
	}
	if req.Shape != "" && req.Shape != domain.ShapeNone {
		fmt.Fprintf(&b, "Shape: %s\n", req.Shape)
	}
	return b.String()
}

// Generate implements service.EphemeralStructureGenerator.
func (g *StructureGenerator) Generate(ctx context.Context, req service.EphemeralRequest) (service.GeneratedStructure, error) {
	var out generatedStructure
	if err := g.chat.CompleteJSON(ctx, structurePrompt, structureUserPrompt(req), &out); err != nil {
		return service.GeneratedStructure{}, domain.NewDomainErrorWithCause(
			domain.ErrGenerationUnavailable.Code,
			domain.ErrGenerationUnavailable.Message,
			err,
		)
	}
	if len(out.Sections) == 0 {
		return service.GeneratedStructure{}, domain.ErrEmptyStructure
	}
	return service.GeneratedStructure{
		Sections:  out.Sections,
		CTAType:   out.CTAType,
		ModelUsed: g.chat.Model(),
	}, nil
}

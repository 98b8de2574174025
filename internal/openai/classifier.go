package openai

import (
	"context"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/service"
)

const classifierPrompt = `You classify content-generation queries.
Answer with a JSON object with exactly these keys:
  "intent": one of "educational", "persuasive", "story", "contrarian", "emotional"
  "domain": a short lowercase business domain such as "pricing", "sales" or "hiring"
  "funnel_stage": one of "awareness", "consideration", "decision"
Do not add any other keys.`

// Classifier classifies queries with a chat model.
type Classifier struct {
	chat *ChatClient
}

// NewClassifier creates a classifier backed by chat.
func NewClassifier(chat *ChatClient) *Classifier {
	return &Classifier{chat: chat}
}

// Classify returns the raw model answer. Field validation is left to the
// caller; only transport and decode failures are errors.
func (c *Classifier) Classify(ctx context.Context, query string) (service.RawClassification, error) {
	var raw service.RawClassification
	if err := c.chat.CompleteJSON(ctx, classifierPrompt, query, &raw); err != nil {
		return service.RawClassification{}, domain.NewDomainErrorWithCause(
			domain.ErrClassificationUnavailable.Code,
			domain.ErrClassificationUnavailable.Message,
			err,
		)
	}
	return raw, nil
}

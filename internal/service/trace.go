package service

import "github.com/cloo-solutions/knowctx/internal/domain"

// decisionTrace collects the audit trail of one request. A nil trace drops
// everything.
type decisionTrace struct {
	decisions []domain.Decision
}

func (t *decisionTrace) add(d domain.Decision) {
	if t == nil {
		return
	}
	t.decisions = append(t.decisions, d)
}

func (t *decisionTrace) list() []domain.Decision {
	if t == nil {
		return nil
	}
	return t.decisions
}

package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
)

// RawClassification is the unvalidated provider answer.
type RawClassification struct {
	Intent      string `json:"intent"`
	Domain      string `json:"domain"`
	FunnelStage string `json:"funnel_stage"`
}

// ClassificationProvider classifies a query with an external model.
type ClassificationProvider interface {
	Classify(ctx context.Context, query string) (RawClassification, error)
}

// QueryClassifier turns a query into an intent, domain and funnel stage.
// Provider failures route to the keyword heuristic, which never fails.
type QueryClassifier struct {
	provider ClassificationProvider
	log      *zap.Logger
}

// NewQueryClassifier creates a classifier. provider may be nil.
func NewQueryClassifier(provider ClassificationProvider, log *zap.Logger) *QueryClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryClassifier{provider: provider, log: log}
}

// Classify always returns a valid classification.
func (c *QueryClassifier) Classify(ctx context.Context, query string, fallback domain.Intent) domain.Classification {
	if _, ok := domain.ParseIntent(string(fallback)); !ok {
		fallback = domain.IntentEducational
	}

	heuristic := HeuristicClassify(query, fallback)
	if c.provider == nil {
		return heuristic
	}

	raw, err := c.provider.Classify(ctx, query)
	if err != nil {
		c.log.Warn("classification provider failed, using heuristic", zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("classify").Inc()
		return heuristic
	}

	out := domain.Classification{Source: "provider"}
	if intent, ok := domain.ParseIntent(raw.Intent); ok {
		out.Intent = intent
	} else {
		out.Intent = fallback
	}
	if stage, ok := domain.ParseFunnelStage(raw.FunnelStage); ok {
		out.FunnelStage = stage
	} else {
		out.FunnelStage = heuristic.FunnelStage
	}
	out.Domain = domain.NormalizeDomain(raw.Domain)
	if out.Domain == "" {
		out.Domain = heuristic.Domain
	}
	return out
}

type intentRule struct {
	intent  domain.Intent
	pattern *regexp.Regexp
}

// Rules are checked in order; the first match wins.
var intentRules = []intentRule{
	{domain.IntentContrarian, regexp.MustCompile(`(?i)\b(myths?|wrong|overrated|unpopular|contrary|contrarian|stop doing|nobody tells|actually)\b`)},
	{domain.IntentStory, regexp.MustCompile(`(?i)\b(story|stories|journey|anecdote|lessons? learned|how we|when i|behind the scenes)\b`)},
	{domain.IntentPersuasive, regexp.MustCompile(`(?i)\b(why you should|convince|persuade|benefits?|roi|worth it|case for|sell)\b`)},
	{domain.IntentEmotional, regexp.MustCompile(`(?i)\b(feel|feeling|fear|afraid|love|frustrat\w*|burn ?out|anxious|struggl\w*|lonely)\b`)},
	{domain.IntentEducational, regexp.MustCompile(`(?i)\b(how to|what is|what are|guide|explain\w*|steps?|learn|tutorial|basics|introduction)\b`)},
}

var (
	decisionPattern      = regexp.MustCompile(`(?i)\b(pricing|price|prices|buy|purchase|demo|trial|plans?|tiers?|quote|contract)\b`)
	considerationPattern = regexp.MustCompile(`(?i)\b(compare|comparison|vs\.?|versus|alternatives?|reviews?|best|evaluate|options)\b`)
)

type domainRule struct {
	domain   string
	keywords []string
}

var domainRules = []domainRule{
	{"pricing", []string{"pricing", "price", "tier", "plan", "discount", "cost"}},
	{"sales", []string{"sales", "pipeline", "deal", "prospect", "outreach", "objection", "closing"}},
	{"marketing", []string{"marketing", "brand", "campaign", "seo", "audience", "positioning"}},
	{"product", []string{"product", "feature", "roadmap", "onboarding", "ux"}},
	{"hiring", []string{"hiring", "recruit", "interview", "candidate", "talent"}},
	{"finance", []string{"revenue", "margin", "cash", "profit", "budget", "fundraising"}},
	{"leadership", []string{"leader", "manager", "management", "culture", "team"}},
}

// HeuristicClassify is the keyword classifier used when no provider answer is
// usable. It is deterministic and never fails.
func HeuristicClassify(query string, fallback domain.Intent) domain.Classification {
	if _, ok := domain.ParseIntent(string(fallback)); !ok {
		fallback = domain.IntentEducational
	}

	out := domain.Classification{
		Intent:      fallback,
		FunnelStage: domain.FunnelAwareness,
		Domain:      "general",
		Source:      "heuristic",
	}

	for _, rule := range intentRules {
		if rule.pattern.MatchString(query) {
			out.Intent = rule.intent
			break
		}
	}

	switch {
	case decisionPattern.MatchString(query):
		out.FunnelStage = domain.FunnelDecision
	case considerationPattern.MatchString(query):
		out.FunnelStage = domain.FunnelConsideration
	}

	words := tokenize(query)
	for _, rule := range domainRules {
		for _, kw := range rule.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					out.Domain = rule.domain
					return out
				}
			}
		}
	}
	return out
}

package domain

import "strings"

// Intent is the communicative goal behind a query.
type Intent string

const (
	IntentEducational Intent = "educational"
	IntentPersuasive  Intent = "persuasive"
	IntentContrarian  Intent = "contrarian"
	IntentStory       Intent = "story"
	IntentEmotional   Intent = "emotional"
)

// FunnelStage is the buyer-journey stage a query targets.
type FunnelStage string

const (
	FunnelAwareness     FunnelStage = "awareness"
	FunnelConsideration FunnelStage = "consideration"
	FunnelDecision      FunnelStage = "decision"
)

// Classification is the {intent, domain, funnel} triple for a query.
type Classification struct {
	Intent      Intent
	Domain      string
	FunnelStage FunnelStage
	// Source is "provider" or "heuristic".
	Source string
}

// ParseIntent returns the intent and whether it is one of the known values.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	switch i {
	case IntentEducational, IntentPersuasive, IntentContrarian, IntentStory, IntentEmotional:
		return i, true
	}
	return "", false
}

// ParseFunnelStage returns the stage and whether it is one of the known values.
func ParseFunnelStage(s string) (FunnelStage, bool) {
	f := FunnelStage(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FunnelAwareness, FunnelConsideration, FunnelDecision:
		return f, true
	}
	return "", false
}

package domain

import "encoding/json"

// Resolution records how a structure was chosen.
type Resolution string

const (
	ResolutionAutoMatched       Resolution = "auto_matched"
	ResolutionEphemeralFallback Resolution = "ephemeral_fallback"
	ResolutionUserSelected      Resolution = "user_selected"
)

// EphemeralConfidence is the fixed confidence of generated structures.
const EphemeralConfidence = 0.3

// LengthBand is the size class derived from a template's section count.
type LengthBand string

const (
	BandShort   LengthBand = "short"
	BandMedium  LengthBand = "medium"
	BandLong    LengthBand = "long"
	BandUnknown LengthBand = ""
)

// ShapeHint is the rhetorical shape sniffed from a structure.
type ShapeHint string

const (
	ShapeStory    ShapeHint = "story"
	ShapeList     ShapeHint = "list"
	ShapeArgument ShapeHint = "argument"
	ShapeNone     ShapeHint = "none"
)

// StructureCandidate is a canonical or ephemeral swipe structure.
type StructureCandidate struct {
	ID          string      `json:"id,omitempty"`
	OrgID       string      `json:"-"`
	Platform    string      `json:"platform,omitempty"`
	Intent      Intent      `json:"intent,omitempty"`
	FunnelStage FunnelStage `json:"funnel_stage,omitempty"`
	CTAType     string      `json:"cta_type,omitempty"`
	Sections    []string    `json:"sections"`
	Confidence  float64     `json:"confidence"`
	FitScore    int         `json:"fit_score"`
	Resolution  Resolution  `json:"resolution,omitempty"`
	ModelUsed   string      `json:"model_used,omitempty"`
	// RawText is the third-party source text. It is never serialized and is
	// cleared before the structure enters a generation context.
	RawText string `json:"-"`
}

// IsEphemeral reports whether the structure was generated for this request.
func (s StructureCandidate) IsEphemeral() bool {
	return s.Resolution == ResolutionEphemeralFallback
}

// Stripped returns a copy without raw source text.
func (s StructureCandidate) Stripped() StructureCandidate {
	s.RawText = ""
	s.Sections = append([]string(nil), s.Sections...)
	return s
}

// JSON returns the serialized structure used for budgeting.
func (s StructureCandidate) JSON() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// StructureSignature is the requested shape derived from a template.
type StructureSignature struct {
	Band   LengthBand  `json:"band"`
	Shape  ShapeHint   `json:"shape"`
	HasCTA *bool       `json:"has_cta,omitempty"`
	Intent Intent      `json:"intent,omitempty"`
	Funnel FunnelStage `json:"funnel_stage,omitempty"`
}

// ScoredStructure pairs a candidate with its fit score.
type ScoredStructure struct {
	Candidate StructureCandidate `json:"candidate"`
	Score     int                `json:"score"`
}

// StructureResolution is the outcome of resolving a structure for a request.
type StructureResolution struct {
	Selected StructureCandidate `json:"selected"`
	Scores   []ScoredStructure  `json:"scores"`
	Rejected []ScoredStructure  `json:"rejected"`
}

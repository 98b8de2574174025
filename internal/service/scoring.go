package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

var roleScores = map[domain.ChunkRole]float64{
	domain.RoleDefinition:     1.0,
	domain.RoleStrategicClaim: 0.9,
	domain.RoleHeuristic:      0.8,
	domain.RoleCausalClaim:    0.7,
	domain.RoleInstruction:    0.6,
	domain.RoleMetric:         0.5,
}

func roleScore(role domain.ChunkRole) float64 {
	return roleScores[role]
}

func authorityScore(a domain.Authority) float64 {
	switch a {
	case domain.AuthorityHigh:
		return 1.0
	case domain.AuthorityLow:
		return 0.2
	default:
		return 0.6
	}
}

func confidenceScore(c domain.Chunk) float64 {
	return 0.7*c.Confidence + 0.3*c.ItemConfidence
}

func timeScore(h domain.TimeHorizon) float64 {
	switch h {
	case domain.HorizonCurrent:
		return 1.0
	case domain.HorizonNearTerm:
		return 0.8
	case domain.HorizonLongTerm:
		return 0.6
	default:
		return 0.5
	}
}

// domainMatch is 1 when both domains are set and one contains the other.
func domainMatch(chunkDomain, queryDomain string) float64 {
	cd := domain.NormalizeDomain(chunkDomain)
	qd := domain.NormalizeDomain(queryDomain)
	if cd == "" || qd == "" {
		return 0
	}
	if strings.Contains(cd, qd) || strings.Contains(qd, cd) {
		return 1
	}
	return 0
}

// flagCandidates marks near matches and soft rejections. It runs before
// scoring so protection never depends on the blend.
func flagCandidates(cands []domain.Candidate, cfg RetrievalConfig) {
	for i := range cands {
		c := &cands[i]
		if c.Distance <= cfg.NearMatchDistance {
			c.NearMatch = true
			c.Protected = true
		}
		if c.Similarity < cfg.SoftRejectSimilarity {
			c.SoftRejected = true
		}
	}
}

// scoreCandidates fills Score and Composite for every candidate.
func scoreCandidates(cands []domain.Candidate, queryDomain string, cfg RetrievalConfig) {
	w := cfg.Weights
	for i := range cands {
		c := &cands[i]
		weighted := w.Similarity*c.Similarity +
			w.Domain*domainMatch(c.Chunk.Domain, queryDomain) +
			w.Role*roleScore(c.Chunk.Role) +
			w.Authority*authorityScore(c.Chunk.Authority) +
			w.Confidence*confidenceScore(c.Chunk) +
			w.Time*timeScore(c.Chunk.TimeHorizon)
		c.Score = domain.Clamp01(weighted * cfg.roleBoost(c.Chunk.Role))
		c.Composite = 1 - c.Score
	}
}

// rankWindow sorts by ascending composite and cuts the Top-K window. Protected
// candidates that fall outside the cut are appended back.
func rankWindow(cands []domain.Candidate, limit int, cfg RetrievalConfig) []domain.Candidate {
	ranked := append([]domain.Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite < ranked[j].Composite
		}
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].ID() < ranked[j].ID()
	})

	size := cfg.window(limit)
	if len(ranked) <= size {
		return ranked
	}

	window := ranked[:size:size]
	for _, c := range ranked[size:] {
		if c.Protected {
			window = append(window, c)
		}
	}
	return window
}

// byDistance returns a copy sorted by ascending raw distance.
func byDistance(cands []domain.Candidate) []domain.Candidate {
	out := append([]domain.Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

var intentBoosters = map[domain.Intent][]string{
	domain.IntentContrarian:  {"counterarguments", "tradeoffs"},
	domain.IntentPersuasive:  {"benefits", "objections"},
	domain.IntentEducational: {"definitions", "examples"},
}

// ExpandQuery builds the bounded, ordered term list embedded for search:
// the query itself, then domain terms, then intent boosters.
func ExpandQuery(query string, c domain.Classification, cfg RetrievalConfig) []string {
	max := cfg.MaxExpansionTerms
	if max <= 0 {
		max = 6
	}

	set := newTermSet(max)
	set.add(query)
	for _, term := range domainTerms(c.Domain, cfg.DomainTerms) {
		set.add(term)
	}
	for _, term := range intentBoosters[c.Intent] {
		set.add(term)
	}
	return set.terms
}

// EmbeddingInput joins expanded terms into the text sent to the embedder.
func EmbeddingInput(terms []string) string {
	return strings.Join(terms, "\n")
}

// domainTerms looks up the term set whose key contains, or is contained in,
// the normalized domain. Keys are scanned in sorted order so the lookup is
// deterministic.
func domainTerms(rawDomain string, table map[string][]string) []string {
	d := domain.NormalizeDomain(rawDomain)
	if d == "" {
		return nil
	}

	if terms, ok := table[d]; ok {
		return terms
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		nk := domain.NormalizeDomain(k)
		if nk == "" {
			continue
		}
		if strings.Contains(d, nk) || strings.Contains(nk, d) {
			return table[k]
		}
	}
	return []string{d, "tradeoffs", "constraints"}
}

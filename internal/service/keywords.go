package service

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {}, "about": {},
}

// tokenize lowercases text and splits it on anything that is not a letter,
// digit, dollar or percent sign.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$' && r != '%'
	})
}

// keywordTerms returns the distinct non-stopword tokens of a query for
// substring search. The whole trimmed query is used when every token is a
// stopword.
func keywordTerms(query string, max int) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, token := range tokenize(query) {
		if len(token) < 2 {
			continue
		}
		if _, ok := stopwords[token]; ok {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token)
		if max > 0 && len(terms) >= max {
			break
		}
	}
	if len(terms) == 0 {
		if clean := strings.TrimSpace(query); clean != "" {
			return []string{strings.ToLower(clean)}
		}
	}
	return terms
}

// termSet accumulates terms, dropping blanks and case-insensitive duplicates
// while preserving insertion order.
type termSet struct {
	max   int
	seen  map[string]struct{}
	terms []string
}

func newTermSet(max int) *termSet {
	return &termSet{max: max, seen: make(map[string]struct{})}
}

func (s *termSet) add(term string) {
	term = strings.TrimSpace(term)
	if term == "" || s.full() {
		return
	}
	key := strings.ToLower(term)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.terms = append(s.terms, term)
}

func (s *termSet) full() bool {
	return s.max > 0 && len(s.terms) >= s.max
}

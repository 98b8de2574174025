package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureCandidate_StrippedDropsRawText(t *testing.T) {
	s := StructureCandidate{
		ID:       "s1",
		Sections: []string{"hook", "body", "cta"},
		RawText:  "verbatim third-party post",
	}

	stripped := s.Stripped()
	assert.Empty(t, stripped.RawText)
	assert.Equal(t, s.Sections, stripped.Sections)

	stripped.Sections[0] = "changed"
	assert.Equal(t, "hook", s.Sections[0])
}

func TestStructureCandidate_JSONNeverContainsRawText(t *testing.T) {
	s := StructureCandidate{ID: "s1", Sections: []string{"hook"}, RawText: "secret source"}
	assert.NotContains(t, s.JSON(), "secret source")
	assert.Contains(t, s.JSON(), `"sections":["hook"]`)
}

func TestStructureCandidate_IsEphemeral(t *testing.T) {
	assert.True(t, StructureCandidate{Resolution: ResolutionEphemeralFallback}.IsEphemeral())
	assert.False(t, StructureCandidate{Resolution: ResolutionAutoMatched}.IsEphemeral())
}

func TestValidateFact(t *testing.T) {
	require.NoError(t, ValidateFact(NewFact("f1", "org1", "Founded in 2019", 0.9)))
	assert.Error(t, ValidateFact(nil))
	assert.Error(t, ValidateFact(NewFact("", "org1", "x", 0.5)))
	assert.Error(t, ValidateFact(NewFact("f1", "org1", "", 0.5)))
	assert.Error(t, ValidateFact(NewFact("f1", "org1", "x", 1.5)))
}

func TestDomainError_IsMatchesWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("prepare: %w", ErrInsufficientContext)
	assert.True(t, errors.Is(wrapped, ErrInsufficientContext))

	withCause := NewDomainErrorWithCause(ErrCodeInsufficientContext, "insufficient context for generation", errors.New("no template"))
	assert.True(t, errors.Is(withCause, ErrInsufficientContext))
	assert.False(t, errors.Is(withCause, ErrMissingQuery))
	assert.Contains(t, withCause.Error(), "no template")
}

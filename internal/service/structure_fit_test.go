package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

func founderStoryTemplate() *domain.Template {
	return &domain.Template{
		ID:       "tpl-1",
		Name:     "Founder story",
		Sections: []string{"hook", "setup", "conflict", "turning point", "lesson", "proof", "cta"},
	}
}

func perfectStory() domain.StructureCandidate {
	return domain.StructureCandidate{
		ID:          "canon-story",
		OrgID:       "org-1",
		Platform:    "linkedin",
		Intent:      domain.IntentStory,
		FunnelStage: domain.FunnelAwareness,
		CTAType:     "soft",
		Sections:    []string{"hook", "origin story", "conflict", "turning point", "lesson", "proof", "cta"},
		Confidence:  0.9,
		RawText:     "copied third-party post",
	}
}

func hookOnly() domain.StructureCandidate {
	return domain.StructureCandidate{ID: "canon-hook", OrgID: "org-1", Sections: []string{"hook"}, Confidence: 0.8}
}

func storyRequest() ResolveRequest {
	return ResolveRequest{
		OrgID:       "org-1",
		Intent:      domain.IntentStory,
		FunnelStage: domain.FunnelAwareness,
		Platform:    "linkedin",
		Prompt:      "how we found our first customer",
		Template:    founderStoryTemplate(),
	}
}

func TestDeriveSignature(t *testing.T) {
	sig := DeriveSignature(founderStoryTemplate(), domain.IntentStory, domain.FunnelAwareness)

	assert.Equal(t, domain.BandLong, sig.Band)
	assert.Equal(t, domain.ShapeStory, sig.Shape)
	require.NotNil(t, sig.HasCTA)
	assert.True(t, *sig.HasCTA)

	empty := DeriveSignature(nil, domain.IntentEducational, "")
	assert.Equal(t, domain.BandUnknown, empty.Band)
	assert.Equal(t, domain.ShapeNone, empty.Shape)
	assert.Nil(t, empty.HasCTA)
}

func TestScoreStructure(t *testing.T) {
	sig := DeriveSignature(founderStoryTemplate(), domain.IntentStory, domain.FunnelAwareness)

	assert.Equal(t, 96, ScoreStructure(perfectStory(), sig))
	assert.Equal(t, 20, ScoreStructure(hookOnly(), sig))

	t.Run("no template", func(t *testing.T) {
		sig := DeriveSignature(nil, "", "")
		// band 20, shape 15, cta 10, simplicity 10
		assert.Equal(t, 55, ScoreStructure(domain.StructureCandidate{Sections: []string{"hook", "body", "cta"}}, sig))
		// band 20, shape 15, no cta 5, simplicity 10
		assert.Equal(t, 50, ScoreStructure(domain.StructureCandidate{Sections: []string{"hook", "body"}}, sig))
	})
}

func TestResolveStructure_AutoMatched(t *testing.T) {
	store := new(MockStructureStore)
	store.On("ListCanonical", mock.Anything, "org-1", domain.IntentStory, domain.FunnelAwareness, "linkedin").
		Return([]domain.StructureCandidate{hookOnly(), perfectStory()}, nil)
	generator := new(MockStructureGenerator)

	res := NewStructureResolver(store, generator, DefaultRetrievalConfig(), zap.NewNop()).
		ResolveStructure(context.Background(), storyRequest())

	assert.Equal(t, domain.ResolutionAutoMatched, res.Selected.Resolution)
	assert.Equal(t, "canon-story", res.Selected.ID)
	assert.Equal(t, 96, res.Selected.FitScore)
	assert.Empty(t, res.Selected.RawText)
	require.Len(t, res.Scores, 2)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "canon-hook", res.Rejected[0].Candidate.ID)
	assert.Equal(t, 20, res.Rejected[0].Score)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestResolveStructure_EphemeralWhenNothingFits(t *testing.T) {
	store := new(MockStructureStore)
	store.On("ListCanonical", mock.Anything, "org-1", domain.IntentStory, domain.FunnelAwareness, "linkedin").
		Return([]domain.StructureCandidate{hookOnly()}, nil)
	generator := new(MockStructureGenerator)
	generator.On("Generate", mock.Anything, EphemeralRequest{
		Prompt:   "how we found our first customer",
		Intent:   domain.IntentStory,
		Funnel:   domain.FunnelAwareness,
		Platform: "linkedin",
		Band:     domain.BandLong,
		Shape:    domain.ShapeStory,
	}).Return(GeneratedStructure{
		Sections:  []string{"hook", "origin", "struggle", "turning point", "lesson", "result", "cta"},
		CTAType:   "soft",
		ModelUsed: "gpt-4o-mini",
	}, nil)

	res := NewStructureResolver(store, generator, DefaultRetrievalConfig(), zap.NewNop()).
		ResolveStructure(context.Background(), storyRequest())

	sel := res.Selected
	assert.Equal(t, domain.ResolutionEphemeralFallback, sel.Resolution)
	assert.Empty(t, sel.ID)
	assert.Equal(t, 0.3, sel.Confidence)
	assert.Equal(t, "gpt-4o-mini", sel.ModelUsed)
	assert.Len(t, sel.Sections, 7)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 20, res.Rejected[0].Score)
	generator.AssertExpectations(t)
}

func TestResolveStructure_SkeletonFallback(t *testing.T) {
	want := []string{"hook", "setup", "conflict", "turning point", "lesson", "supporting detail", "cta"}

	t.Run("generator error", func(t *testing.T) {
		store := new(MockStructureStore)
		store.On("ListCanonical", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("db down"))
		generator := new(MockStructureGenerator)
		generator.On("Generate", mock.Anything, mock.Anything).Return(GeneratedStructure{}, errors.New("rate limited"))

		res := NewStructureResolver(store, generator, DefaultRetrievalConfig(), zap.NewNop()).
			ResolveStructure(context.Background(), storyRequest())

		assert.Equal(t, domain.ResolutionEphemeralFallback, res.Selected.Resolution)
		assert.Equal(t, "skeleton", res.Selected.ModelUsed)
		assert.Equal(t, want, res.Selected.Sections)
		assert.Empty(t, res.Rejected)
	})

	t.Run("blank sections", func(t *testing.T) {
		generator := new(MockStructureGenerator)
		generator.On("Generate", mock.Anything, mock.Anything).Return(GeneratedStructure{Sections: []string{" ", ""}}, nil)

		res := NewStructureResolver(nil, generator, DefaultRetrievalConfig(), zap.NewNop()).
			ResolveStructure(context.Background(), storyRequest())

		assert.Equal(t, "skeleton", res.Selected.ModelUsed)
		assert.Equal(t, want, res.Selected.Sections)
	})

	t.Run("no generator", func(t *testing.T) {
		res := NewStructureResolver(nil, nil, DefaultRetrievalConfig(), nil).
			ResolveStructure(context.Background(), storyRequest())

		assert.Equal(t, "skeleton", res.Selected.ModelUsed)
		assert.Equal(t, 0.3, res.Selected.Confidence)
	})
}

func TestResolveStructure_UserSelected(t *testing.T) {
	store := new(MockStructureStore)
	req := storyRequest()
	picked := hookOnly()
	picked.RawText = "source"
	req.UserSelected = &picked

	res := NewStructureResolver(store, nil, DefaultRetrievalConfig(), zap.NewNop()).
		ResolveStructure(context.Background(), req)

	assert.Equal(t, domain.ResolutionUserSelected, res.Selected.Resolution)
	assert.Equal(t, "canon-hook", res.Selected.ID)
	assert.Equal(t, 20, res.Selected.FitScore)
	assert.Empty(t, res.Selected.RawText)
	assert.Equal(t, "source", picked.RawText)
	store.AssertNotCalled(t, "ListCanonical", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveStructure_IgnoresStoredEphemeral(t *testing.T) {
	stale := perfectStory()
	stale.Resolution = domain.ResolutionEphemeralFallback
	store := new(MockStructureStore)
	store.On("ListCanonical", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.StructureCandidate{stale}, nil)

	res := NewStructureResolver(store, nil, DefaultRetrievalConfig(), zap.NewNop()).
		ResolveStructure(context.Background(), storyRequest())

	assert.Equal(t, domain.ResolutionEphemeralFallback, res.Selected.Resolution)
	assert.Empty(t, res.Scores)
}

func TestSkeletonSections(t *testing.T) {
	assert.Equal(t, []string{"hook", "body", "cta"}, skeletonSections(domain.ShapeNone, domain.BandShort))
	assert.Equal(t, []string{"hook", "body", "takeaway", "supporting detail", "cta"}, skeletonSections(domain.ShapeNone, domain.BandMedium))
	assert.Equal(t, []string{"hook", "body", "takeaway", "cta"}, skeletonSections(domain.ShapeNone, domain.BandUnknown))
	assert.Equal(t, []string{"claim", "evidence", "cta"}, skeletonSections(domain.ShapeArgument, domain.BandShort))
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

type pipelineDeps struct {
	store      *memoryStore
	facts      *MockFactStore
	structures *MockStructureStore
	logs       *MockRetrievalLogRepository
	archive    *MockTraceArchive
	provider   *MockClassificationProvider
}

func newTestPipeline(d pipelineDeps) *GenerationPipeline {
	cfg := DefaultRetrievalConfig()
	log := zap.NewNop()

	var facts FactStore
	if d.facts != nil {
		facts = d.facts
	}
	var structures StructureStore
	if d.structures != nil {
		structures = d.structures
	}
	var logs RetrievalLogRepository
	if d.logs != nil {
		logs = d.logs
	}
	var archive TraceArchive
	if d.archive != nil {
		archive = d.archive
	}

	var classifier *QueryClassifier
	if d.provider != nil {
		classifier = NewQueryClassifier(d.provider, log)
	}

	retrieval := NewRetrievalServiceWithConfig(classifier, &stubEmbedder{}, d.store, facts, cfg, log)
	resolver := NewStructureResolver(structures, nil, cfg, log)
	return NewGenerationPipeline(retrieval, resolver, NewContextAssembler(cfg, log), logs, archive, log)
}

func pipelineStore() *memoryStore {
	return &memoryStore{
		hits: []domain.SearchHit{
			hit(testChunk("c1", "d1", strong), 0.15),
			hit(testChunk("c2", "d2"), 0.25),
		},
		chunks: []domain.Chunk{
			testChunk("m1", "d1", withRole(domain.RoleMetric)),
		},
	}
}

func TestPrepare_Viable(t *testing.T) {
	facts := new(MockFactStore)
	facts.On("ListFacts", mock.Anything, "org-1", "user-1", 5).
		Return([]domain.Fact{{ID: "f1", OrgID: "org-1", Text: "ARR grew 3x", Confidence: 0.9}}, nil)
	structures := new(MockStructureStore)
	structures.On("ListCanonical", mock.Anything, "org-1", domain.IntentStory, mock.Anything, "linkedin").
		Return([]domain.StructureCandidate{perfectStory()}, nil)
	archive := new(MockTraceArchive)
	archive.On("PutTrace", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "traces/org-1/") && strings.HasSuffix(key, ".json")
	}), mock.MatchedBy(func(payload []byte) bool {
		return json.Valid(payload)
	})).Return(nil)
	logs := new(MockRetrievalLogRepository)
	logs.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(e RetrievalLogEntry) bool {
		return e.OrgID == "org-1" && e.Viable && e.Mode == "vector" && e.Structure == "auto_matched" && len(e.Results) == 2
	})).Return("log-1", nil)

	res, err := newTestPipeline(pipelineDeps{
		store:      pipelineStore(),
		facts:      facts,
		structures: structures,
		logs:       logs,
		archive:    archive,
	}).Prepare(context.Background(), PrepareRequest{
		OrgID:    "org-1",
		UserID:   "user-1",
		Query:    "the story behind our pricing tiers",
		Intent:   domain.IntentStory,
		Platform: "linkedin",
		Template: founderStoryTemplate(),
	})

	require.NoError(t, err)
	require.NotNil(t, res)
	gc := res.Context
	assert.Equal(t, []string{"c1", "c2"}, chunkIDs(gc.Chunks))
	assert.Equal(t, []string{"m1"}, chunkIDs(gc.EnrichmentChunks))
	assert.Len(t, gc.Facts, 1)
	require.NotNil(t, gc.Structure)
	assert.Equal(t, "canon-story", gc.Structure.ID)
	assert.Empty(t, gc.Structure.RawText)
	assert.Equal(t, domain.ResolutionAutoMatched, res.Structure.Selected.Resolution)
	assert.True(t, strings.HasPrefix(res.TraceKey, "traces/org-1/"))

	var stages []string
	for _, d := range gc.Decisions {
		stages = append(stages, d.Stage)
	}
	assert.Contains(t, stages, "classify")
	assert.Contains(t, stages, "structure")
	assert.Contains(t, stages, "assembly")

	facts.AssertExpectations(t)
	archive.AssertExpectations(t)
	logs.AssertExpectations(t)
}

func TestPrepare_InsufficientContext(t *testing.T) {
	logs := new(MockRetrievalLogRepository)
	logs.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(e RetrievalLogEntry) bool {
		return !e.Viable && e.TraceKey == ""
	})).Return("log-2", nil)

	res, err := newTestPipeline(pipelineDeps{store: pipelineStore(), logs: logs}).
		Prepare(context.Background(), PrepareRequest{OrgID: "org-1", Query: "pricing tiers"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientContext))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Context.Chunks)
	assert.Empty(t, res.TraceKey)
	logs.AssertExpectations(t)
}

func TestPrepare_InvalidRequest(t *testing.T) {
	res, err := newTestPipeline(pipelineDeps{store: pipelineStore()}).
		Prepare(context.Background(), PrepareRequest{Query: "pricing tiers", Template: founderStoryTemplate()})

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, domain.ErrMissingOrgID))
}

func TestPrepare_RecordingFailuresAreIgnored(t *testing.T) {
	archive := new(MockTraceArchive)
	archive.On("PutTrace", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("s3 down"))
	logs := new(MockRetrievalLogRepository)
	logs.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(e RetrievalLogEntry) bool {
		return e.TraceKey == ""
	})).Return("", errors.New("db down"))

	res, err := newTestPipeline(pipelineDeps{store: pipelineStore(), logs: logs, archive: archive}).
		Prepare(context.Background(), PrepareRequest{
			OrgID:       "org-1",
			Query:       "pricing tiers",
			Template:    founderStoryTemplate(),
			UserContext: "mention the annual plan",
		})

	require.NoError(t, err)
	assert.Empty(t, res.TraceKey)
	assert.Equal(t, "mention the annual plan", res.Context.UserContext)
	archive.AssertExpectations(t)
	logs.AssertExpectations(t)
}

func TestPrepare_StructureFitUsesProviderClassification(t *testing.T) {
	provider := new(MockClassificationProvider)
	provider.On("Classify", mock.Anything, "pricing tiers").
		Return(RawClassification{Intent: "story", Domain: "sales", FunnelStage: "decision"}, nil).Once()
	structures := new(MockStructureStore)
	structures.On("ListCanonical", mock.Anything, "org-1", domain.IntentStory, domain.FunnelDecision, "linkedin").
		Return([]domain.StructureCandidate{perfectStory()}, nil)

	res, err := newTestPipeline(pipelineDeps{store: pipelineStore(), structures: structures, provider: provider}).
		Prepare(context.Background(), PrepareRequest{
			OrgID:    "org-1",
			Query:    "pricing tiers",
			Platform: "linkedin",
			Template: founderStoryTemplate(),
		})

	require.NoError(t, err)
	assert.Equal(t, domain.IntentStory, res.Classification.Intent)
	assert.Equal(t, domain.FunnelDecision, res.Classification.FunnelStage)
	assert.Equal(t, "provider", res.Classification.Source)
	provider.AssertExpectations(t)
	structures.AssertExpectations(t)
}

func TestPrepare_ExplicitFunnelOverridesClassification(t *testing.T) {
	provider := new(MockClassificationProvider)
	provider.On("Classify", mock.Anything, mock.Anything).
		Return(RawClassification{Intent: "story", Domain: "sales", FunnelStage: "decision"}, nil)
	structures := new(MockStructureStore)
	structures.On("ListCanonical", mock.Anything, "org-1", domain.IntentStory, domain.FunnelAwareness, "linkedin").
		Return([]domain.StructureCandidate{}, nil)

	_, err := newTestPipeline(pipelineDeps{store: pipelineStore(), structures: structures, provider: provider}).
		Prepare(context.Background(), PrepareRequest{
			OrgID:       "org-1",
			Query:       "pricing tiers",
			FunnelStage: domain.FunnelAwareness,
			Platform:    "linkedin",
			Template:    founderStoryTemplate(),
		})

	require.NoError(t, err)
	structures.AssertExpectations(t)
}

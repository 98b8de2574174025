package service

import (
	"context"
	"sort"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

func testChunk(id, doc string, opts ...func(*domain.Chunk)) domain.Chunk {
	c := domain.Chunk{
		ID:              id,
		KnowledgeItemID: doc,
		OrgID:           "org-1",
		Text:            "chunk text for " + id,
		Role:            domain.RoleDefinition,
		Type:            domain.ChunkTypeNormalized,
		Authority:       domain.AuthorityMedium,
		Confidence:      0.5,
		ItemConfidence:  0.5,
		TimeHorizon:     domain.HorizonCurrent,
		TokenCount:      20,
		Domain:          "pricing",
		SourceVariant:   domain.VariantNormalized,
		UsagePolicy:     domain.UsageDefault,
		IsActive:        true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func withRole(r domain.ChunkRole) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.Role = r }
}

func withType(t domain.ChunkType) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.Type = t }
}

func withDomain(d string) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.Domain = d }
}

func withAuthority(a domain.Authority) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.Authority = a }
}

func withVariant(v domain.SourceVariant) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.SourceVariant = v }
}

func withPolicy(p domain.UsagePolicy) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.UsagePolicy = p }
}

func withText(t string) func(*domain.Chunk) {
	return func(c *domain.Chunk) { c.Text = t }
}

func weak(c *domain.Chunk) {
	c.Role = domain.RoleOther
	c.Authority = domain.AuthorityLow
	c.Confidence = 0
	c.ItemConfidence = 0
	c.TimeHorizon = domain.HorizonUnknown
	c.Domain = "hr"
}

func strong(c *domain.Chunk) {
	c.Role = domain.RoleDefinition
	c.Authority = domain.AuthorityHigh
	c.Confidence = 1
	c.ItemConfidence = 1
	c.Domain = "pricing"
}

func hit(c domain.Chunk, distance float64) domain.SearchHit {
	return domain.SearchHit{Chunk: c, Distance: distance}
}

// memoryStore is an in-memory VectorStore. Search ignores the vector and
// returns the preset hits under the store-level filters.
type memoryStore struct {
	hits       []domain.SearchHit
	chunks     []domain.Chunk
	searchErr  error
	keywordErr error
	itemsErr   error

	searchCalls  int
	keywordCalls int
	lastFilter   domain.SearchFilter
	lastTerms    []string
}

func roleAllowed(roles []domain.ChunkRole, r domain.ChunkRole) bool {
	if len(roles) == 0 {
		return true
	}
	for _, allowed := range roles {
		if allowed == r {
			return true
		}
	}
	return false
}

func (m *memoryStore) Search(_ context.Context, _ []float32, filter domain.SearchFilter, limit int) ([]domain.SearchHit, error) {
	m.searchCalls++
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []domain.SearchHit
	for _, h := range m.hits {
		if h.Chunk.OrgID != filter.OrgID || !h.Chunk.IsActive || !h.Chunk.Generatable() {
			continue
		}
		if !roleAllowed(filter.Roles, h.Chunk.Role) {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) KeywordSearch(_ context.Context, terms []string, filter domain.SearchFilter, limit int) ([]domain.Chunk, error) {
	m.keywordCalls++
	m.lastTerms = terms
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	var out []domain.Chunk
	for _, c := range m.chunks {
		if c.OrgID != filter.OrgID {
			continue
		}
		text := strings.ToLower(c.Text)
		for _, t := range terms {
			if strings.Contains(text, t) {
				out = append(out, c)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) ChunksForItems(_ context.Context, orgID string, itemIDs []string, roles []domain.ChunkRole) ([]domain.Chunk, error) {
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	items := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		items[id] = struct{}{}
	}
	var out []domain.Chunk
	for _, c := range m.chunks {
		if c.OrgID != orgID || !roleAllowed(roles, c.Role) {
			continue
		}
		if _, ok := items[c.KnowledgeItemID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubEmbedder struct {
	degraded bool
	calls    int
	inputs   []string
}

func (s *stubEmbedder) EmbedOne(_ context.Context, text string) domain.Embedding {
	s.calls++
	s.inputs = append(s.inputs, text)
	return domain.Embedding{Vector: []float32{0.1, 0.2, 0.3}, Degraded: s.degraded, Model: "stub"}
}

func (s *stubEmbedder) EmbedMany(ctx context.Context, texts []string) []domain.Embedding {
	out := make([]domain.Embedding, 0, len(texts))
	for _, t := range texts {
		out = append(out, s.EmbedOne(ctx, t))
	}
	return out
}

// MockClassificationProvider is a mock implementation of ClassificationProvider
type MockClassificationProvider struct {
	mock.Mock
}

func (m *MockClassificationProvider) Classify(ctx context.Context, query string) (RawClassification, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(RawClassification), args.Error(1)
}

// MockFactStore is a mock implementation of FactStore
type MockFactStore struct {
	mock.Mock
}

func (m *MockFactStore) ListFacts(ctx context.Context, orgID, userID string, limit int) ([]domain.Fact, error) {
	args := m.Called(ctx, orgID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fact), args.Error(1)
}

// MockStructureStore is a mock implementation of StructureStore
type MockStructureStore struct {
	mock.Mock
}

func (m *MockStructureStore) ListCanonical(ctx context.Context, orgID string, intent domain.Intent, funnel domain.FunnelStage, platform string) ([]domain.StructureCandidate, error) {
	args := m.Called(ctx, orgID, intent, funnel, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StructureCandidate), args.Error(1)
}

// MockStructureGenerator is a mock implementation of EphemeralStructureGenerator
type MockStructureGenerator struct {
	mock.Mock
}

func (m *MockStructureGenerator) Generate(ctx context.Context, req EphemeralRequest) (GeneratedStructure, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(GeneratedStructure), args.Error(1)
}

// MockRetrievalLogRepository is a mock implementation of RetrievalLogRepository
type MockRetrievalLogRepository struct {
	mock.Mock
}

func (m *MockRetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

// MockTraceArchive is a mock implementation of TraceArchive
type MockTraceArchive struct {
	mock.Mock
}

func (m *MockTraceArchive) PutTrace(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

func candidateIDs(cands []domain.Candidate) []string {
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ID())
	}
	return ids
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids
}

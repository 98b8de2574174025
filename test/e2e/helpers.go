//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/api/handlers"
	"github.com/cloo-solutions/knowctx/internal/embedding"
	"github.com/cloo-solutions/knowctx/internal/repository"
	"github.com/cloo-solutions/knowctx/internal/server"
	"github.com/cloo-solutions/knowctx/internal/service"
	"github.com/cloo-solutions/knowctx/internal/storage"
	"github.com/cloo-solutions/knowctx/internal/testutil"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	S3C        *testutil.S3Container
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Ingest     *service.IngestService
	HTTPClient *http.Client
}

// APIResponse mirrors the server envelope.
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

// SetupE2EEnv starts Postgres and S3 containers and serves the full router
// in-process. No embedding provider is configured, so every vector degrades
// and retrieval runs on the keyword path.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewS3Container(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          "e2e-traces",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	log := zap.NewNop()
	embedder := embedding.NewResilient(nil, "fallback", embeddingDims, log)
	cfg := service.DefaultRetrievalConfig()

	chunkRepo := repository.NewChunkRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)
	archive := storage.NewTraceArchive(s3Client)

	retrieval := service.NewRetrievalServiceWithConfig(service.NewQueryClassifier(nil, log), embedder, chunkRepo, repository.NewFactRepository(pool), cfg, log)
	resolver := service.NewStructureResolver(repository.NewStructureRepository(pool), nil, cfg, log)
	pipeline := service.NewGenerationPipeline(retrieval, resolver, service.NewContextAssembler(cfg, log), logRepo, archive, log)

	router := server.NewRouter(server.RouterConfig{
		Logger:           log,
		RetrievalHandler: handlers.NewRetrievalHandler(retrieval),
		StructureHandler: handlers.NewStructureHandler(resolver),
		ContextHandler:   handlers.NewContextHandler(pipeline, archive),
		LogHandler:       handlers.NewLogHandler(logRepo),
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		S3C:        s3C,
		Pool:       pool,
		Server:     httptest.NewServer(router),
		Ingest:     service.NewIngestService(repository.NewTxRunner(pool), embedder, log),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.S3C != nil {
		_ = e.S3C.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
}

// Seed ingests items for org and fails the test on error.
func (e *E2ETestEnv) Seed(orgID string, items ...service.IngestItem) service.IngestStats {
	e.T.Helper()
	stats, err := e.Ingest.Ingest(e.Ctx, orgID, items)
	if err != nil {
		e.T.Fatalf("failed to ingest: %v", err)
	}
	return stats
}

// Post sends a JSON body scoped to orgID.
func (e *E2ETestEnv) Post(path, orgID string, body interface{}) *APIResponse {
	e.T.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to encode body: %v", err)
	}
	return e.do(http.MethodPost, path, orgID, bytes.NewReader(raw))
}

// Get sends a GET scoped to orgID.
func (e *E2ETestEnv) Get(path, orgID string) *APIResponse {
	e.T.Helper()
	return e.do(http.MethodGet, path, orgID, nil)
}

func (e *E2ETestEnv) do(method, path, orgID string, body io.Reader) *APIResponse {
	e.T.Helper()
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, body)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := &APIResponse{Status: resp.StatusCode}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, out); err != nil {
		e.T.Fatalf("%s %s returned non-JSON body (%d): %s", method, path, resp.StatusCode, raw)
	}
	return out
}

// Decode unmarshals the response data into v.
func (r *APIResponse) Decode(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func (r *APIResponse) String() string {
	return fmt.Sprintf("%d %s %s %s", r.Status, r.Code, r.Error, r.Data)
}

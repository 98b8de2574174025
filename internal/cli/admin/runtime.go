package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/config"
	"github.com/cloo-solutions/knowctx/internal/database"
	"github.com/cloo-solutions/knowctx/internal/embedding"
	"github.com/cloo-solutions/knowctx/internal/logger"
	"github.com/cloo-solutions/knowctx/internal/openai"
	"github.com/cloo-solutions/knowctx/internal/service"
)

// runtime holds the collaborators shared by the daemon commands.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	pool     *pgxpool.Pool
	embedder *embedding.Resilient
	closers  []func()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func newRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (*runtime, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}
	log.Info("connected to database")

	rt := &runtime{cfg: cfg, log: log, pool: pool}
	rt.closers = append(rt.closers, pool.Close)

	if err := rt.buildEmbedder(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// buildEmbedder chains OpenAI, the embedding cache and the fallback vector.
// Without an API key every embedding degrades and search runs on keywords.
func (r *runtime) buildEmbedder() error {
	if !r.cfg.HasOpenAI() {
		r.log.Warn("no embedding provider configured, queries use keyword search")
		r.embedder = embedding.NewResilient(nil, "fallback", r.cfg.EmbeddingDimensions, r.log)
		return nil
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              r.cfg.OpenAIAPIKey,
		BaseURL:             r.cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(r.cfg.EmbeddingModel),
		EmbeddingDimensions: r.cfg.EmbeddingDimensions,
	})

	var store embedding.Store
	if r.cfg.HasRedis() {
		rdb, err := embedding.NewRedisClient(r.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		r.closers = append(r.closers, func() { _ = rdb.Close() })
		store = embedding.NewRedisStore(rdb, r.cfg.EmbeddingCacheTTL)
		r.log.Info("embedding cache: redis", zap.Duration("ttl", r.cfg.EmbeddingCacheTTL))
	} else {
		store = embedding.NewMemoryStore(r.cfg.EmbeddingCacheLRU)
		r.log.Info("embedding cache: in-process lru", zap.Int("size", r.cfg.EmbeddingCacheLRU))
	}

	cached := embedding.NewCachedGenerator(client, store, client.Model(), r.log)
	r.embedder = embedding.NewResilient(cached, client.Model(), client.Dimensions(), r.log)
	return nil
}

// languageModels returns the classifier and structure generator, or nils
// when no API key is configured.
func (r *runtime) languageModels() (service.ClassificationProvider, service.EphemeralStructureGenerator) {
	if !r.cfg.HasOpenAI() {
		r.log.Warn("no chat model configured, classification is heuristic and structures use skeletons")
		return nil, nil
	}
	chat := openai.NewChatClient(openai.NewSDKClient(r.cfg.OpenAIAPIKey, r.cfg.OpenAIBaseURL), r.cfg.ChatModel)
	return openai.NewClassifier(chat), openai.NewStructureGenerator(chat)
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

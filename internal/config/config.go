package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"knowctx-traces"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL"`

	// Embedding cache: Redis when RedisURL is set, in-process LRU otherwise.
	RedisURL          string        `envconfig:"REDIS_URL"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"168h"`
	EmbeddingCacheLRU int           `envconfig:"EMBEDDING_CACHE_SIZE" default:"4096"`

	// Re-embeds chunks ingested without a vector. Zero disables the worker.
	EmbeddingBackfillInterval time.Duration `envconfig:"EMBEDDING_BACKFILL_INTERVAL" default:"1m"`
	EmbeddingBackfillBatch    int           `envconfig:"EMBEDDING_BACKFILL_BATCH" default:"32"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// RetrievalConfigFile overlays retrieval tunables from YAML.
	RetrievalConfigFile string `envconfig:"RETRIEVAL_CONFIG"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KNOWCTX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

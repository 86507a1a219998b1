package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	// APIKeys is the comma-separated set of accepted bearer keys. Empty
	// disables authentication; useful for local development only.
	APIKeys string `envconfig:"API_KEYS"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDims  int    `envconfig:"EMBEDDING_DIMS" default:"1536"`
	ChatModel      string `envconfig:"CHAT_MODEL"`

	// EnrichChunks toggles per-chunk context-summary generation at index time.
	EnrichChunks bool `envconfig:"ENRICH_CHUNKS" default:"true"`

	ChunkTokenBudget   int `envconfig:"CHUNK_TOKEN_BUDGET" default:"512"`
	ChunkOverlapBudget int `envconfig:"CHUNK_OVERLAP_BUDGET" default:"50"`

	IndexWorkers    int `envconfig:"INDEX_WORKERS" default:"4"`
	IndexQueueDepth int `envconfig:"INDEX_QUEUE_DEPTH" default:"64"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"recall-recordings"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RECALL", &cfg); err != nil {
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

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// APIKeySet parses APIKeys into the accepted-key set.
func (c *Config) APIKeySet() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, k := range strings.Split(c.APIKeys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

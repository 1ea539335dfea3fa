package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// OpenRouter-compatible gateway for chat, titles and embeddings
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"openai/text-embedding-3-small"`

	// Vector index backend: "pgvector" keeps chunks in Postgres,
	// "qdrant" uses an external Qdrant instance
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	QdrantURL     string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey  string `envconfig:"QDRANT_API_KEY"`

	// Web search provider for internet-augmented answers
	SearchAPIKey  string `envconfig:"SEARCH_API_KEY"`
	SearchBaseURL string `envconfig:"SEARCH_BASE_URL" default:"https://google.serper.dev"`

	// Optional archival of raw uploads
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"studium-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("STUDIUM", &cfg); err != nil {
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

func (c *Config) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

func (c *Config) HasSearch() bool {
	return c.SearchAPIKey != ""
}

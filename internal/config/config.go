// Package config centralizes environment-driven configuration and the
// on-disk layout of the data directory shared by all pipeline stages.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults for tunable pipeline parameters.
const (
	DefaultMaxTokens   = 500
	DefaultEmbedBatch  = 64
	DefaultUpsertBatch = 128
	DefaultCollection  = "legal_chunks"
)

// Config holds all runtime configuration for the pipeline.
type Config struct {
	DataDir string

	QdrantHost string
	QdrantPort int
	Collection string

	MaxTokens   int // token budget per chunk
	EmbedBatch  int // chunks per embedding flush
	UpsertBatch int // entries per index insert
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func FromEnv() *Config {
	return &Config{
		DataDir:     getEnv("LEXPIPE_DATA_DIR", "data"),
		QdrantHost:  getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:  getEnvInt("QDRANT_PORT", 6334),
		Collection:  getEnv("LEXPIPE_COLLECTION", DefaultCollection),
		MaxTokens:   getEnvInt("LEXPIPE_MAX_TOKENS", DefaultMaxTokens),
		EmbedBatch:  getEnvInt("LEXPIPE_EMBED_BATCH", DefaultEmbedBatch),
		UpsertBatch: getEnvInt("LEXPIPE_UPSERT_BATCH", DefaultUpsertBatch),
	}
}

// RawDir is where fetched raw documents are stored, one subdirectory per source.
func (c *Config) RawDir() string { return filepath.Join(c.DataDir, "raw") }

// ProcessedDir holds normalized plain-text output of the extract stage.
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// ChunkDir holds chunks.csv and chunks.jsonl.
func (c *Config) ChunkDir() string { return filepath.Join(c.DataDir, "chunked") }

// EmbeddingsDir holds the vector array file.
func (c *Config) EmbeddingsDir() string { return filepath.Join(c.DataDir, "embeddings") }

func (c *Config) RawLedgerPath() string { return filepath.Join(c.DataDir, "metadata.csv") }

func (c *Config) ProcessedLedgerPath() string {
	return filepath.Join(c.DataDir, "metadata_processed.csv")
}

func (c *Config) ChunkedLedgerPath() string {
	return filepath.Join(c.DataDir, "metadata_chunked.csv")
}

func (c *Config) EmbeddedLedgerPath() string {
	return filepath.Join(c.DataDir, "metadata_embeddings.csv")
}

func (c *Config) VectorsPath() string {
	return filepath.Join(c.EmbeddingsDir(), "vectors.f32")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

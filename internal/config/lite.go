// Package config provides configuration management for the diagnostic
// engine. This file contains the lightweight configuration for
// standalone (no Postgres/Redis) operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// LiteConfig is a simplified, env-var-driven configuration for
// standalone operation against SQLite and an in-process cache only.
type LiteConfig struct {
	DataDir string

	EncoderDimension int
	EncoderBackend   string

	CacheMaxItems int
	CacheTTL      time.Duration
	QueryCacheTTL time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".diagnostic-engine")

	return &LiteConfig{
		DataDir:          dataDir,
		EncoderDimension: 256,
		EncoderBackend:   "local",
		CacheMaxItems:    1000,
		CacheTTL:         30 * 24 * time.Hour,
		QueryCacheTTL:    2 * time.Minute,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadLiteConfig loads configuration from environment variables,
// falling back to DefaultLiteConfig for anything unset.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("DIAGNOSTIC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DIAGNOSTIC_ENCODER_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EncoderDimension = n
		}
	}
	if v := os.Getenv("DIAGNOSTIC_ENCODER_BACKEND"); v != "" {
		cfg.EncoderBackend = v
	}
	if v := os.Getenv("DIAGNOSTIC_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("DIAGNOSTIC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv("DIAGNOSTIC_QUERY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueryCacheTTL = d
		}
	}
	if v := os.Getenv("DIAGNOSTIC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DIAGNOSTIC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// SQLitePath returns the path to the standalone SQLite condition store.
func (c *LiteConfig) SQLitePath() string {
	return filepath.Join(c.DataDir, "conditions.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// ToConfig expands LiteConfig into a full domain.Config: an sqlite
// index at SQLitePath, the LiteConfig's own encoder, cache and logging
// values, and NewManager's default values for timeouts, retries,
// scoring, triage, retrieval and ingest.min_phenotypes. The Database and
// Redis sections, the remote-encoder settings and the ingest keyword
// lists are left at their zero values.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{OverallTimeout: 5 * time.Second},
		Encoder: domain.EncoderConfig{
			Dimension: c.EncoderDimension,
			ModelID:   "local-shingle-hash-v1",
			Backend:   c.EncoderBackend,
		},
		Index: domain.IndexConfig{
			Backend:        "sqlite",
			SearchTimeout:  time.Second,
			RetryCount:     3,
			RetryBaseDelay: 100 * time.Millisecond,
			ConcurrencyCap: 8,
			SQLitePath:     c.SQLitePath(),
		},
		Cache: domain.CacheConfig{
			EmbeddingTTL:      c.CacheTTL,
			EmbeddingMaxKeys:  c.CacheMaxItems,
			CacheOpTimeout:    100 * time.Millisecond,
			QueryCacheTTL:     c.QueryCacheTTL,
			QueryCacheMaxKeys: c.CacheMaxItems,
		},
		Scoring: domain.ScoringConfig{
			Weights:           domain.DefaultScoringWeights(),
			FinalResultsLimit: domain.FinalResultsLimit,
			AgeToleranceYears: 10,
		},
		Triage: domain.TriageConfig{
			Tier1Threshold: 0.85, Tier2Threshold: 0.60, Tier3Threshold: 0.40,
			EmergencyConfidenceFloor: 0.40, MaxTests: 10, MaxSpecialists: 5,
		},
		Retrieval: domain.RetrievalConfig{
			BroadTopK: 50, FocusedTopK: 20, RareTopK: 10, TopKCandidates: 50,
			RRFK: 60, BroadWeight: 1.0, FocusedWeight: 0.8, RareWeight: 1.2,
			DemographicAgeToleranceYears: 10,
			EncoderTimeout:               1500 * time.Millisecond,
			SearchTimeout:                time.Second,
			CacheOpTimeout:               100 * time.Millisecond,
			ConcurrencyLimit:             8,
		},
		Ingest:  domain.IngestConfig{MinPhenotypes: 3, CheckpointBackend: "sqlite"},
		Logging: domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat},
	}
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// Config is the complete tunable surface of the analysis engine. It is
// populated by internal/config.Manager (viper) or
// internal/config.LiteConfig (env).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Encoder  EncoderConfig  `mapstructure:"encoder"`
	Index    IndexConfig    `mapstructure:"index"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Triage   TriageConfig   `mapstructure:"triage"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures process lifecycle / overall request handling.
type ServerConfig struct {
	OverallTimeout time.Duration `mapstructure:"overall_timeout"`
}

// DatabaseConfig configures the Postgres-backed vector index.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures C4's distributed cache tier.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// EncoderConfig configures C1.
type EncoderConfig struct {
	Dimension       int           `mapstructure:"dimension"`
	ModelID         string        `mapstructure:"model_id"`
	Backend         string        `mapstructure:"backend"` // "local" or "remote"
	RemoteURL       string        `mapstructure:"remote_url"`
	RemoteTimeout   time.Duration `mapstructure:"remote_timeout"`
	RemoteRateLimit float64       `mapstructure:"remote_rate_limit"` // requests/sec
	DegradedMode    bool          `mapstructure:"degraded_mode"`
}

// IndexConfig configures C2.
type IndexConfig struct {
	Backend        string        `mapstructure:"backend"` // "memory", "postgres", "sqlite"
	SearchTimeout  time.Duration `mapstructure:"search_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	ConcurrencyCap int           `mapstructure:"concurrency_cap"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
}

// CacheConfig configures C4's TTLs and bounds.
type CacheConfig struct {
	EmbeddingTTL     time.Duration `mapstructure:"embedding_ttl"`
	EmbeddingMaxKeys int           `mapstructure:"embedding_max_keys"`
	CacheOpTimeout   time.Duration `mapstructure:"cache_op_timeout"`
	QueryCacheTTL    time.Duration `mapstructure:"query_cache_ttl"`
	QueryCacheMaxKeys int          `mapstructure:"query_cache_max_keys"`
}

// ScoringWeights are the confidence-scoring weights, configurable with
// a validation hook rather than hard-coded.
type ScoringWeights struct {
	VectorSimilarity float64 `mapstructure:"vector_similarity"`
	SymptomOverlap   float64 `mapstructure:"symptom_overlap"`
	TemporalFit      float64 `mapstructure:"temporal_fit"`
	DemographicFit   float64 `mapstructure:"demographic_fit"`
}

// Validate enforces that weights are non-negative and sum to 1.0.
func (w ScoringWeights) Validate() error {
	if w.VectorSimilarity < 0 || w.SymptomOverlap < 0 || w.TemporalFit < 0 || w.DemographicFit < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	sum := w.VectorSimilarity + w.SymptomOverlap + w.TemporalFit + w.DemographicFit
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// DefaultScoringWeights returns the engine's default weighting.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		VectorSimilarity: 0.5,
		SymptomOverlap:   0.3,
		TemporalFit:      0.1,
		DemographicFit:   0.1,
	}
}

// ScoringConfig configures C7.
type ScoringConfig struct {
	Weights            ScoringWeights `mapstructure:"weights"`
	FinalResultsLimit  int            `mapstructure:"final_results_limit"`
	AgeToleranceYears  int            `mapstructure:"age_tolerance_years"`
}

// TriageConfig configures C8's thresholds.
type TriageConfig struct {
	Tier1Threshold float64 `mapstructure:"tier1_threshold"`
	Tier2Threshold float64 `mapstructure:"tier2_threshold"`
	Tier3Threshold float64 `mapstructure:"tier3_threshold"`
	EmergencyConfidenceFloor float64 `mapstructure:"emergency_confidence_floor"`
	MaxTests       int     `mapstructure:"max_tests"`
	MaxSpecialists int     `mapstructure:"max_specialists"`
}

// RetrievalConfig configures C6's sub-queries and fusion.
type RetrievalConfig struct {
	BroadTopK          int           `mapstructure:"broad_top_k"`
	FocusedTopK        int           `mapstructure:"focused_top_k"`
	RareTopK           int           `mapstructure:"rare_top_k"`
	TopKCandidates     int           `mapstructure:"top_k_candidates"`
	RRFK               int           `mapstructure:"rrf_k"`
	BroadWeight        float64       `mapstructure:"broad_weight"`
	FocusedWeight      float64       `mapstructure:"focused_weight"`
	RareWeight         float64       `mapstructure:"rare_weight"`
	DemographicAgeToleranceYears int `mapstructure:"demographic_age_tolerance_years"`
	EncoderTimeout     time.Duration `mapstructure:"encoder_timeout"`
	SearchTimeout      time.Duration `mapstructure:"search_timeout"`
	CacheOpTimeout     time.Duration `mapstructure:"cache_op_timeout"`
	ConcurrencyLimit   int64         `mapstructure:"concurrency_limit"`
}

// IngestConfig configures C3.
type IngestConfig struct {
	MinPhenotypes       int      `mapstructure:"min_phenotypes"`
	ObservableKeywords  []string `mapstructure:"observable_keywords"`
	ICD10SymptomKeywords []string `mapstructure:"icd10_symptom_keywords"`
	CheckpointBackend   string   `mapstructure:"checkpoint_backend"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates cross-field config invariants beyond what each
// sub-config validates on its own.
func (c *Config) Validate() error {
	if c.Encoder.Dimension <= 0 {
		return fmt.Errorf("encoder.dimension must be positive")
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Triage.Tier1Threshold <= c.Triage.Tier2Threshold || c.Triage.Tier2Threshold <= c.Triage.Tier3Threshold {
		return fmt.Errorf("triage thresholds must be strictly decreasing: tier1 > tier2 > tier3")
	}
	return nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Manager implements domain.ConfigProvider using Viper, layering a YAML
// file under environment variable overrides.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration from built-in defaults, a config.yaml
// (in ., ./config or /etc/diagnostic-engine/), and env vars prefixed
// DIAGNOSTIC_, in that increasing order of precedence.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/diagnostic-engine/")

	viper.SetEnvPrefix("DIAGNOSTIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	cfg := &domain.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.config = cfg
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.overall_timeout", "5s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "diagnostic_engine")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("redis.default_ttl", "720h") // 30 days, embedding cache TTL
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.pool_timeout", "4s")

	viper.SetDefault("encoder.dimension", 256)
	viper.SetDefault("encoder.model_id", "local-shingle-hash-v1")
	viper.SetDefault("encoder.backend", "local")
	viper.SetDefault("encoder.remote_timeout", "1500ms")
	viper.SetDefault("encoder.remote_rate_limit", 20)

	viper.SetDefault("index.backend", "memory")
	viper.SetDefault("index.search_timeout", "1s")
	viper.SetDefault("index.retry_count", 3)
	viper.SetDefault("index.retry_base_delay", "100ms")
	viper.SetDefault("index.concurrency_cap", 8)
	viper.SetDefault("index.sqlite_path", "./diagnostic.db")

	viper.SetDefault("cache.embedding_ttl", "720h")
	viper.SetDefault("cache.embedding_max_keys", 10000)
	viper.SetDefault("cache.cache_op_timeout", "100ms")
	viper.SetDefault("cache.query_cache_ttl", "2m")
	viper.SetDefault("cache.query_cache_max_keys", 1000)

	viper.SetDefault("scoring.weights.vector_similarity", 0.5)
	viper.SetDefault("scoring.weights.symptom_overlap", 0.3)
	viper.SetDefault("scoring.weights.temporal_fit", 0.1)
	viper.SetDefault("scoring.weights.demographic_fit", 0.1)
	viper.SetDefault("scoring.final_results_limit", 10)
	viper.SetDefault("scoring.age_tolerance_years", 10)

	viper.SetDefault("triage.tier1_threshold", 0.85)
	viper.SetDefault("triage.tier2_threshold", 0.60)
	viper.SetDefault("triage.tier3_threshold", 0.40)
	viper.SetDefault("triage.emergency_confidence_floor", 0.40)
	viper.SetDefault("triage.max_tests", 10)
	viper.SetDefault("triage.max_specialists", 5)

	viper.SetDefault("retrieval.broad_top_k", 50)
	viper.SetDefault("retrieval.focused_top_k", 20)
	viper.SetDefault("retrieval.rare_top_k", 10)
	viper.SetDefault("retrieval.top_k_candidates", 50)
	viper.SetDefault("retrieval.rrf_k", 60)
	viper.SetDefault("retrieval.broad_weight", 1.0)
	viper.SetDefault("retrieval.focused_weight", 0.8)
	viper.SetDefault("retrieval.rare_weight", 1.2)
	viper.SetDefault("retrieval.demographic_age_tolerance_years", 10)
	viper.SetDefault("retrieval.encoder_timeout", "1500ms")
	viper.SetDefault("retrieval.search_timeout", "1s")
	viper.SetDefault("retrieval.cache_op_timeout", "100ms")
	viper.SetDefault("retrieval.concurrency_limit", 8)

	viper.SetDefault("ingest.min_phenotypes", 3)
	viper.SetDefault("ingest.checkpoint_backend", "sqlite")
	viper.SetDefault("ingest.observable_keywords", []string{
		"pain", "fever", "fatigue", "cough", "rash", "headache", "nausea",
		"weakness", "swelling", "bleeding", "vomiting", "dizziness", "weight",
		"breath", "vision", "seizure", "numbness", "tremor", "itching",
		"diarrhea", "constipation", "jaundice", "cyanosis",
	})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig implements domain.ConfigProvider.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload re-reads the configuration from its sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// GetDatabaseConnectionString formats a libpq-style DSN from the
// database section.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

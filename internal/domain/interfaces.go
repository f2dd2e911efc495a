package domain

import "context"

// TextEncoder is C1's contract: a deterministic map from text to a
// unit-length vector of Dimension().
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// FilterOp is a conjunction term in a VectorIndex search filter: a
// small typed filter expression compiled by each backend adapter to
// its own native filter form, rather than a string-keyed dictionary.
type FilterOp struct {
	IsRareDisease   *bool
	SexPredilection SexPredilection
	Age             *int // when set, combined with each candidate's TypicalAgeRange
}

// SearchResult pairs a Condition with its cosine score, already mapped
// from [-1,1] to [0,1] via (s+1)/2 by the index backend.
type SearchResult struct {
	Condition *Condition
	Score     float64
}

// VectorIndexPoint is one (condition_id, vector, payload) triple upserted
// into the index.
type VectorIndexPoint struct {
	Condition *Condition
	Vector    []float32
}

// VectorIndex is C2's contract.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, points []VectorIndexPoint) error
	Search(ctx context.Context, queryVector []float32, topK int, filter FilterOp) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// EmbeddingCache is C4's contract. A miss never blocks; the caller
// encodes and calls Set. An unreachable backend degrades to
// always-miss/no-op Set.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32) error
}

// ConfigProvider exposes the engine's full tunable configuration surface.
type ConfigProvider interface {
	GetConfig() *Config
}

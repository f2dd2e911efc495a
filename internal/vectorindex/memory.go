package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// MemoryIndex is an in-process, brute-force implementation of
// domain.VectorIndex: cosine similarity over every stored point, linear
// in collection size. It backs unit tests and the standalone "no
// external store configured" deployment mode.
type MemoryIndex struct {
	mu     sync.RWMutex
	dim    int
	points []domain.VectorIndexPoint
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (idx *MemoryIndex) EnsureCollection(ctx context.Context, dim int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dim = dim
	return nil
}

func (idx *MemoryIndex) Upsert(ctx context.Context, points []domain.VectorIndexPoint) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	byID := make(map[string]int, len(idx.points))
	for i, p := range idx.points {
		byID[p.Condition.ConditionID] = i
	}
	for _, p := range points {
		if i, ok := byID[p.Condition.ConditionID]; ok {
			idx.points[i] = p
			continue
		}
		idx.points = append(idx.points, p)
		byID[p.Condition.ConditionID] = len(idx.points) - 1
	}
	return nil
}

func (idx *MemoryIndex) Search(ctx context.Context, queryVector []float32, topK int, filter domain.FilterOp) ([]domain.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(idx.points))
	for _, p := range idx.points {
		if !matches(p.Condition, filter) {
			continue
		}
		sim := cosine(queryVector, p.Vector)
		results = append(results, domain.SearchResult{Condition: p.Condition, Score: (sim + 1) / 2})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Condition.ConditionID < results[j].Condition.ConditionID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (idx *MemoryIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.points), nil
}

func matches(c *domain.Condition, filter domain.FilterOp) bool {
	if filter.IsRareDisease != nil && c.IsRareDisease != *filter.IsRareDisease {
		return false
	}
	if filter.SexPredilection != "" && filter.SexPredilection != domain.PredilectionAny &&
		c.SexPredilection != "" && c.SexPredilection != domain.PredilectionAny &&
		c.SexPredilection != filter.SexPredilection {
		return false
	}
	if filter.Age != nil && !c.TypicalAgeRange.Contains(*filter.Age, 0) {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

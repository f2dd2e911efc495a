package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"time"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// QueryCache memoizes fused retrieval (C6) candidate lists for a short
// window (default two minutes) so repeated or near-simultaneous requests
// for the same case skip the sub-queries entirely; scoring (C7) still
// runs on the cached candidates. It is in-process only: retrieval results
// are per-request and small, so they don't warrant a Redis round trip
// the way embeddings do.
type QueryCache struct {
	cache *lru.LRU[string, []*domain.ScoredCandidate]
}

// NewQueryCache builds a QueryCache holding at most maxKeys entries,
// each expiring ttl after insertion.
func NewQueryCache(maxKeys int, ttl time.Duration) *QueryCache {
	return &QueryCache{cache: lru.NewLRU[string, []*domain.ScoredCandidate](maxKeys, nil, ttl)}
}

// QueryKey derives a cache key from the case's clinically-relevant fields;
// CaseID is deliberately excluded so that two differently-labeled but
// identical cases share a cache entry.
func QueryKey(p *domain.PatientCase) string {
	h := sha256.New()
	fmt.Fprintf(h, "age=%d;sex=%s;complaint=%s;", p.Age, p.Sex, p.ChiefComplaint)
	for _, s := range p.Symptoms {
		fmt.Fprintf(h, "sym=%s|%s|%d|%s;", s.Description, s.Severity, s.DurationDays, s.Frequency)
	}
	return "qry:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached candidate list for key, if present and unexpired.
func (c *QueryCache) Get(key string) ([]*domain.ScoredCandidate, bool) {
	return c.cache.Get(key)
}

// Set stores the candidate list for key.
func (c *QueryCache) Set(key string, candidates []*domain.ScoredCandidate) {
	c.cache.Add(key, candidates)
}

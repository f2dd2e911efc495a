package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/clinicalpath/dx-engine/internal/cache"
	"github.com/clinicalpath/dx-engine/internal/domain"
)

// subQuery describes one of C6's three complementary sub-queries.
type subQuery struct {
	name   string
	filter domain.FilterOp
	topK   int
	weight float64
}

// Retriever runs the three sub-queries concurrently and fuses their
// results with Reciprocal Rank Fusion: an errgroup scope with a join
// barrier and a semaphore bounding concurrent encoder/index calls.
type Retriever struct {
	encoder domain.TextEncoder
	index   domain.VectorIndex
	cache   domain.EmbeddingCache
	sem     *semaphore.Weighted
	logger  *logrus.Logger

	rrfK               int
	broadTopK          int
	focusedTopK        int
	rareTopK           int
	broadWeight        float64
	focusedWeight      float64
	rareWeight         float64
	topKCandidates     int
	ageToleranceYears  int
}

// Config bundles Retriever's tunables (mirrors domain.RetrievalConfig).
type Config struct {
	BroadTopK                   int
	FocusedTopK                 int
	RareTopK                    int
	TopKCandidates              int
	RRFK                        int
	BroadWeight                 float64
	FocusedWeight               float64
	RareWeight                  float64
	DemographicAgeToleranceYears int
	ConcurrencyLimit            int64
}

// New builds a Retriever.
func New(encoder domain.TextEncoder, index domain.VectorIndex, embeddingCache domain.EmbeddingCache, cfg Config, logger *logrus.Logger) *Retriever {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := cfg.ConcurrencyLimit
	if limit <= 0 {
		limit = 4
	}
	return &Retriever{
		encoder: encoder, index: index, cache: embeddingCache,
		sem: semaphore.NewWeighted(limit), logger: logger,
		rrfK: orDefault(cfg.RRFK, 60), broadTopK: orDefault(cfg.BroadTopK, 50),
		focusedTopK: orDefault(cfg.FocusedTopK, 20), rareTopK: orDefault(cfg.RareTopK, 10),
		broadWeight: orDefaultF(cfg.BroadWeight, 1.0), focusedWeight: orDefaultF(cfg.FocusedWeight, 0.8),
		rareWeight: orDefaultF(cfg.RareWeight, 1.2), topKCandidates: orDefault(cfg.TopKCandidates, 50),
		ageToleranceYears: orDefault(cfg.DemographicAgeToleranceYears, 10),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
func orDefaultF(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

type queryOutcome struct {
	query   subQuery
	results []domain.SearchResult
}

// Retrieve runs the broad, focused, and rare sub-queries concurrently,
// demographic-pre-filters each, and fuses them into a deduplicated,
// RRF-ranked candidate list capped at the configured limit. The rare
// sub-query reuses the broad sub-query's vector rather than re-encoding
// the identical query text.
//
// The second return value reports whether the result is partial: the
// encoder failed for one of the two independently-encoded texts, or one
// of the sub-queries failed against the index, but enough of the rest
// still succeeded to assemble a differential. A non-nil error means
// nothing usable could be assembled at all.
func (r *Retriever) Retrieve(ctx context.Context, p *domain.PatientCase) ([]*domain.ScoredCandidate, bool, error) {
	broadText := canonicalize(p.ChiefComplaint + " " + strings.Join(p.SymptomTexts(), " "))
	focusedText := canonicalize(p.ChiefComplaint)

	var broadVector, focusedVector []float32
	var broadErr, focusedErr error
	var broadCached, focusedCached bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.sem.Acquire(gctx, 1); err != nil {
			return nil
		}
		defer r.sem.Release(1)
		broadVector, broadCached, broadErr = r.vectorFor(gctx, broadText)
		return nil
	})
	g.Go(func() error {
		if err := r.sem.Acquire(gctx, 1); err != nil {
			return nil
		}
		defer r.sem.Release(1)
		focusedVector, focusedCached, focusedErr = r.vectorFor(gctx, focusedText)
		return nil
	})
	_ = g.Wait()

	if broadErr != nil && focusedErr != nil {
		return nil, false, fmt.Errorf("%w (broad: %v, focused: %v)", domain.ErrEncoderUnavailable, broadErr, focusedErr)
	}

	encoderDegraded := broadErr != nil || focusedErr != nil
	if encoderDegraded {
		r.logger.WithFields(logrus.Fields{
			"broad_failed": broadErr != nil, "focused_failed": focusedErr != nil,
			"broad_cached": broadCached, "focused_cached": focusedCached,
		}).Warn("encoder call failed for one sub-query text, continuing in degraded mode")
	}

	isRare := true
	var queries []subQuery
	var vectors [][]float32
	if broadErr == nil {
		queries = append(queries,
			subQuery{name: "broad", filter: domain.FilterOp{}, topK: r.broadTopK, weight: r.broadWeight},
			subQuery{name: "rare", filter: domain.FilterOp{IsRareDisease: &isRare}, topK: r.rareTopK, weight: r.rareWeight},
		)
		vectors = append(vectors, broadVector, broadVector)
	}
	if focusedErr == nil {
		queries = append(queries, subQuery{name: "focused", filter: domain.FilterOp{}, topK: r.focusedTopK, weight: r.focusedWeight})
		vectors = append(vectors, focusedVector)
	}

	outcomes := make([]queryOutcome, len(queries))
	searchGroup, searchCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var partialErrs *multierror.Error

	for i, q := range queries {
		i, q, vector := i, q, vectors[i]
		searchGroup.Go(func() error {
			if err := r.sem.Acquire(searchCtx, 1); err != nil {
				return nil
			}
			defer r.sem.Release(1)

			results, err := r.runSubQuery(searchCtx, q, vector, p)
			if err != nil {
				mu.Lock()
				partialErrs = multierror.Append(partialErrs, fmt.Errorf("sub-query %s: %w", q.name, err))
				mu.Unlock()
				r.logger.WithError(err).WithField("subquery", q.name).Warn("sub-query failed, continuing with remaining sub-queries")
				return nil
			}
			outcomes[i] = queryOutcome{query: q, results: results}
			return nil
		})
	}
	if err := searchGroup.Wait(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	if partialErrs != nil && partialErrs.Len() == len(queries) {
		return nil, false, fmt.Errorf("%w: all sub-queries failed: %v", domain.ErrIndexUnavailable, partialErrs)
	}

	fused := fuse(outcomes, r.rrfK)
	if len(fused) > r.topKCandidates {
		fused = fused[:r.topKCandidates]
	}
	return fused, encoderDegraded || partialErrs != nil, nil
}

func canonicalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func (r *Retriever) runSubQuery(ctx context.Context, q subQuery, vector []float32, p *domain.PatientCase) ([]domain.SearchResult, error) {
	results, err := r.index.Search(ctx, vector, q.topK, q.filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return filterDemographic(results, p, r.ageToleranceYears), nil
}

// vectorFor looks the query text up in the embedding cache, falling
// back to the encoder on a miss and writing the result back. A
// cache-backend failure degrades silently to an always-miss; an
// encoder failure fails just this text's vector, not the whole
// request. The second return value reports whether the vector was
// served from cache.
func (r *Retriever) vectorFor(ctx context.Context, text string) ([]float32, bool, error) {
	key := cache.EmbeddingKey(r.encoder.ModelID(), text)
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v, true, nil
		}
	}
	vector, err := r.encoder.Encode(ctx, text)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrEncoderUnavailable, err)
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, key, vector)
	}
	return vector, false, nil
}

// filterDemographic drops candidates whose typical_age_range excludes
// the patient's age by more than toleranceYears, or whose
// sex_predilection contradicts the patient's sex.
func filterDemographic(results []domain.SearchResult, p *domain.PatientCase, toleranceYears int) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	for _, res := range results {
		c := res.Condition
		if c.TypicalAgeRange != nil && !c.TypicalAgeRange.Contains(p.Age, toleranceYears) {
			continue
		}
		if c.SexPredilection != "" && c.SexPredilection != domain.PredilectionAny && string(c.SexPredilection) != string(p.Sex) {
			continue
		}
		out = append(out, res)
	}
	return out
}

type fusionRecord struct {
	condition        *domain.Condition
	rrfScore         float64
	vectorSimilarity float64
}

// fuse combines each sub-query's ranked results into a single score per
// condition using weighted Reciprocal Rank Fusion.
func fuse(outcomes []queryOutcome, k int) []*domain.ScoredCandidate {
	records := make(map[string]*fusionRecord)
	for _, outcome := range outcomes {
		if outcome.query.name == "" {
			continue
		}
		for rank, res := range outcome.results {
			rec, ok := records[res.Condition.ConditionID]
			if !ok {
				rec = &fusionRecord{condition: res.Condition}
				records[res.Condition.ConditionID] = rec
			}
			rec.rrfScore += outcome.query.weight * (1.0 / float64(k+rank+1))
			if res.Score > rec.vectorSimilarity {
				rec.vectorSimilarity = res.Score
			}
		}
	}

	out := make([]*domain.ScoredCandidate, 0, len(records))
	for _, rec := range records {
		out = append(out, &domain.ScoredCandidate{
			Condition:        rec.condition,
			VectorSimilarity: rec.vectorSimilarity,
		})
	}
	attachRRF(out, records)
	return out
}

// attachRRF sorts candidates by (rrf_score desc, vector_similarity desc,
// condition_id asc), reading rrf_score from records since it is an
// internal fusion detail with no field on the public ScoredCandidate type.
func attachRRF(candidates []*domain.ScoredCandidate, records map[string]*fusionRecord) {
	sort.Slice(candidates, func(i, j int) bool {
		ri := records[candidates[i].Condition.ConditionID].rrfScore
		rj := records[candidates[j].Condition.ConditionID].rrfScore
		if ri != rj {
			return ri > rj
		}
		if candidates[i].VectorSimilarity != candidates[j].VectorSimilarity {
			return candidates[i].VectorSimilarity > candidates[j].VectorSimilarity
		}
		return candidates[i].Condition.ConditionID < candidates[j].Condition.ConditionID
	})
}

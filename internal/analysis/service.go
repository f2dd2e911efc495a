package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/cache"
	"github.com/clinicalpath/dx-engine/internal/domain"
	"github.com/clinicalpath/dx-engine/internal/redflag"
	"github.com/clinicalpath/dx-engine/internal/retrieval"
	"github.com/clinicalpath/dx-engine/internal/scoring"
	"github.com/clinicalpath/dx-engine/internal/triage"
)

// Options controls per-request behaviour overrides.
type Options struct {
	// SkipQueryCache forces a fresh retrieval even if a cached result
	// exists for this case's signature.
	SkipQueryCache bool
}

// Service orchestrates encoding, retrieval, scoring, and triage
// classification into one DiagnosticResult per request. It owns the
// overall request deadline and the degrade-vs-fail decision.
type Service struct {
	redFlags   *redflag.Detector
	retriever  *retrieval.Retriever
	scorer     *scoring.Scorer
	classifier *triage.Classifier
	queryCache *cache.QueryCache
	logger     *logrus.Logger

	overallTimeout time.Duration
}

// New builds a Service from its component dependencies.
func New(redFlags *redflag.Detector, retriever *retrieval.Retriever, scorer *scoring.Scorer, classifier *triage.Classifier, queryCache *cache.QueryCache, overallTimeout time.Duration, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if overallTimeout <= 0 {
		overallTimeout = 5 * time.Second
	}
	return &Service{
		redFlags: redFlags, retriever: retriever, scorer: scorer, classifier: classifier,
		queryCache: queryCache, overallTimeout: overallTimeout, logger: logger,
	}
}

// Analyze runs one end-to-end request: validation, red-flag detection,
// retrieval, scoring, and triage classification, returning a fully
// populated DiagnosticResult.
func (s *Service) Analyze(ctx context.Context, p *domain.PatientCase, opts Options) (*domain.DiagnosticResult, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.overallTimeout)
	defer cancel()

	redFlagHits, _ := s.redFlags.MatchCase(p)

	candidates, partial, retrieveErr := s.retrieveCandidates(ctx, p, opts)
	if retrieveErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, retrieveErr)
	}

	scored := s.scorer.ScoreAll(p, candidates)
	if len(scored) > domain.FinalResultsLimit {
		scored = scored[:domain.FinalResultsLimit]
	}

	if partial && !hasUsableEvidence(scored) {
		return nil, fmt.Errorf("%w: retrieval degraded and no candidate cleared the confidence floor", domain.ErrServiceDegraded)
	}

	tier, requiresEmergency, tests, specialists := s.classifier.Classify(scored, redFlagHits)

	result := &domain.DiagnosticResult{
		CaseID:                 p.CaseID,
		DifferentialDiagnoses:  scored,
		ReviewTier:             tier,
		RedFlagsDetected:       redFlagHits,
		RequiresEmergencyCare:  requiresEmergency,
		RecommendedSpecialists: specialists,
		RecommendedTests:       tests,
		Partial:                partial,
	}
	if len(scored) > 0 {
		result.PrimaryDiagnosis = scored[0]
		result.OverallConfidence = scored[0].Confidence
	}
	result.ReasoningSummary = reasoningSummary(result)
	result.ProcessingTimeMS = time.Since(start).Milliseconds()

	if partial {
		s.logger.WithField("case_id", p.CaseID).Warn("analysis served from degraded retrieval")
	}
	return result, nil
}

// retrieveCandidates serves cached candidates when available, otherwise
// delegates to the retriever. A query-cache hit is never reported as
// partial: the cache stores only fully-fused candidate lists, not the
// partial/degraded status of the request that produced them.
func (s *Service) retrieveCandidates(ctx context.Context, p *domain.PatientCase, opts Options) ([]*domain.ScoredCandidate, bool, error) {
	key := cache.QueryKey(p)
	if !opts.SkipQueryCache && s.queryCache != nil {
		if cached, ok := s.queryCache.Get(key); ok {
			return cloneCandidates(cached), false, nil
		}
	}
	candidates, partial, err := s.retriever.Retrieve(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if s.queryCache != nil {
		s.queryCache.Set(key, cloneCandidates(candidates))
	}
	return candidates, partial, nil
}

// cloneCandidates copies each candidate struct into a new slice so a
// cached result's later in-place scoring mutation by one caller never
// leaks into another caller's view of the same cache entry. The
// Condition pointers are still shared.
func cloneCandidates(in []*domain.ScoredCandidate) []*domain.ScoredCandidate {
	out := make([]*domain.ScoredCandidate, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}

// hasUsableEvidence reports whether at least one candidate clears the
// confidence floor a degraded result may still be served from: a
// degraded or partial result is preferred to an outright failure
// whenever at least one candidate with confidence >= 0.40 exists.
func hasUsableEvidence(candidates []*domain.ScoredCandidate) bool {
	for _, c := range candidates {
		if c.Confidence >= 0.40 {
			return true
		}
	}
	return false
}

func reasoningSummary(r *domain.DiagnosticResult) string {
	if r.PrimaryDiagnosis == nil {
		if r.Partial {
			return "No differential could be established from the available evidence. partial=true"
		}
		return "No differential could be established from the available evidence."
	}
	alternatives := len(r.DifferentialDiagnoses) - 1
	if alternatives < 0 {
		alternatives = 0
	}
	flagSentence := "No red flags were detected."
	if len(r.RedFlagsDetected) > 0 {
		flagSentence = fmt.Sprintf("Red flags detected: %v.", r.RedFlagsDetected)
	}
	summary := fmt.Sprintf(
		"Primary differential is %s (confidence %.0f%%); %d alternatives considered. %s",
		r.PrimaryDiagnosis.Condition.Name, r.PrimaryDiagnosis.Confidence*100, alternatives, flagSentence,
	)
	if r.Partial {
		summary += " partial=true: one or more sub-queries did not complete."
	}
	return summary
}

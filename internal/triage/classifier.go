package triage

import (
	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Classifier maps a scored differential into a review tier and
// aggregates next-step recommendations.
type Classifier struct {
	tier1Threshold float64
	tier2Threshold float64
	tier3Threshold float64
	maxTests       int
	maxSpecialists int
}

// New builds a Classifier. Thresholds must be strictly decreasing
// (enforced by domain.Config.Validate).
func New(tier1, tier2, tier3 float64, maxTests, maxSpecialists int) *Classifier {
	return &Classifier{
		tier1Threshold: tier1, tier2Threshold: tier2, tier3Threshold: tier3,
		maxTests: maxTests, maxSpecialists: maxSpecialists,
	}
}

// Classify derives ReviewTier, RequiresEmergencyCare and the
// recommendation lists for a result from its ranked differential and
// detected red flags. candidates is assumed already sorted by
// domain.Less (descending confidence).
func (c *Classifier) Classify(candidates []*domain.ScoredCandidate, redFlags []string) (domain.ReviewTier, bool, []string, []string) {
	tier := domain.TierMultidisciplinary
	requiresEmergency := len(redFlags) > 0

	if len(candidates) > 0 {
		top := candidates[0].Confidence
		switch {
		case top >= c.tier1Threshold:
			tier = domain.TierAutomated
		case top >= c.tier2Threshold:
			tier = domain.TierPrimaryCare
		case top >= c.tier3Threshold:
			tier = domain.TierSpecialist
		default:
			tier = domain.TierMultidisciplinary
		}
	}

	top3 := candidates
	if len(top3) > 3 {
		top3 = top3[:3]
	}
	for _, cand := range top3 {
		if cand.Condition.UrgencyLevel == domain.UrgencyCritical && cand.Confidence >= 0.40 {
			requiresEmergency = true
		}
	}

	if requiresEmergency {
		tier = tier.AtLeast(domain.TierPrimaryCare)
	}
	if len(candidates) < 3 {
		tier = tier.AtLeast(domain.TierSpecialist)
	}

	tests := dedupCapped(testsOf(top3), c.maxTests)
	specialists := dedupCapped(specialistsOf(top3), c.maxSpecialists)

	return tier, requiresEmergency, tests, specialists
}

func testsOf(candidates []*domain.ScoredCandidate) []string {
	var out []string
	for _, c := range candidates {
		out = append(out, c.Condition.RecommendedTests...)
	}
	return out
}

func specialistsOf(candidates []*domain.ScoredCandidate) []string {
	var out []string
	for _, c := range candidates {
		if c.Condition.RecommendedSpecialist != "" {
			out = append(out, c.Condition.RecommendedSpecialist)
		}
	}
	return out
}

// dedupCapped preserves first-seen order and caps the result at max
// entries.
func dedupCapped(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

package scoring

import (
	"regexp"
	"strings"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Scorer computes the four clinical signals and the weighted confidence
// for each retrieval candidate.
type Scorer struct {
	weights           domain.ScoringWeights
	ageToleranceYears int
}

// New builds a Scorer. weights must already satisfy ScoringWeights.Validate.
func New(weights domain.ScoringWeights, ageToleranceYears int) *Scorer {
	return &Scorer{weights: weights, ageToleranceYears: ageToleranceYears}
}

// Score fills in the four signals, confidence, matched_symptoms and
// red_flags_hit on a ScoredCandidate whose Condition and
// VectorSimilarity are already populated by retrieval.
func (s *Scorer) Score(p *domain.PatientCase, candidate *domain.ScoredCandidate) {
	c := candidate.Condition
	text := strings.Join(p.AllText(), " \n ")

	matchedTypical := matchPhrases(text, c.TypicalSymptoms)
	matchedRare := matchPhrases(text, c.RareSymptoms)
	candidate.MatchedSymptoms = dedupAppend(matchedTypical, matchedRare)
	candidate.RedFlagsHit = matchPhrases(text, c.RedFlagSymptoms)

	candidate.SymptomOverlap = symptomOverlap(matchedTypical, matchedRare, len(c.TypicalSymptoms))
	duration, found := longestMatchedDuration(p, candidate.MatchedSymptoms)
	candidate.TemporalFit = temporalFit(c.TemporalPattern, duration, found)
	candidate.DemographicFit = demographicFit(p, c, s.ageToleranceYears)

	candidate.Confidence = s.weights.VectorSimilarity*candidate.VectorSimilarity +
		s.weights.SymptomOverlap*candidate.SymptomOverlap +
		s.weights.TemporalFit*candidate.TemporalFit +
		s.weights.DemographicFit*candidate.DemographicFit
}

// ScoreAll scores every candidate and returns them re-sorted by
// domain.Less.
func (s *Scorer) ScoreAll(p *domain.PatientCase, candidates []*domain.ScoredCandidate) []*domain.ScoredCandidate {
	for _, c := range candidates {
		s.Score(p, c)
	}
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(candidates []*domain.ScoredCandidate) {
	// insertion sort is fine at expected candidate-list sizes (tens, not
	// thousands) and keeps the comparator identical to domain.Less with
	// no separate less-func adaptor needed.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && domain.Less(candidates[j], candidates[j-1]); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

var wordBoundaryCache = map[string]*regexp.Regexp{}

func phrasePattern(phrase string) *regexp.Regexp {
	if re, ok := wordBoundaryCache[phrase]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	wordBoundaryCache[phrase] = re
	return re
}

// matchPhrases returns the subset of phrases that appear in text as a
// case-insensitive, word-boundary substring.
func matchPhrases(text string, phrases []string) []string {
	var out []string
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if phrasePattern(phrase).MatchString(text) {
			out = append(out, phrase)
		}
	}
	return out
}

func dedupAppend(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, items := range [][]string{a, b} {
		for _, v := range items {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// symptomOverlap scores the fraction of a condition's expected symptoms
// that were actually matched, weighting rare-symptom matches 1.5x over
// typical ones, capped at 1.0.
func symptomOverlap(matchedTypical, matchedRare []string, expected int) float64 {
	if expected <= 0 {
		expected = 1
	}
	raw := (float64(len(matchedTypical)) + 1.5*float64(len(matchedRare))) / float64(expected)
	if raw > 1.0 {
		return 1.0
	}
	return raw
}

// longestMatchedDuration returns the longest duration_days among
// symptoms whose description contains one of the matched phrases.
func longestMatchedDuration(p *domain.PatientCase, matched []string) (longest int, found bool) {
	for _, sym := range p.Symptoms {
		for _, phrase := range matched {
			if phrasePattern(phrase).MatchString(sym.Description) {
				if sym.DurationDays > longest {
					longest = sym.DurationDays
				}
				found = true
				break
			}
		}
	}
	return longest, found
}

// temporalFit scores how well a matched symptom's duration aligns with
// the condition's acute/chronic pattern, defaulting to neutral when
// there's no duration evidence or the condition has no temporal hint.
func temporalFit(pattern domain.TemporalPattern, duration int, found bool) float64 {
	if !found || pattern == "" || pattern == domain.TemporalUnspecified {
		return 0.5
	}
	switch pattern {
	case domain.TemporalAcute:
		return interpolateFit(float64(duration), 14, true)
	case domain.TemporalChronic:
		return interpolateFit(float64(duration), 30, false)
	default:
		return 0.5
	}
}

// interpolateFit scores a duration against a favoured-side threshold.
// favourBelow=true means durations <= threshold are favoured (acute);
// favourBelow=false means durations >= threshold are favoured (chronic).
// Within the favoured side the score is 1.0; a strong mismatch (2x
// threshold past the boundary, i.e. 3x threshold for acute) floors at
// 0.1, linearly interpolated between.
func interpolateFit(duration, threshold float64, favourBelow bool) float64 {
	const floor = 0.1
	span := threshold * 2 // distance past the boundary at which the floor is reached
	if favourBelow {
		if duration <= threshold {
			return 1.0
		}
		distance := duration - threshold
		if distance >= span {
			return floor
		}
		return 1.0 - (1.0-floor)*(distance/span)
	}
	if duration >= threshold {
		return 1.0
	}
	distance := threshold - duration
	if distance >= span {
		return floor
	}
	return 1.0 - (1.0-floor)*(distance/span)
}

// demographicFit scores sex and age agreement between patient and
// condition: a sex mismatch against a predilection zeroes the score;
// otherwise it decays linearly with distance outside the typical age
// range.
func demographicFit(p *domain.PatientCase, c *domain.Condition, toleranceYears int) float64 {
	if c.SexPredilection != "" && c.SexPredilection != domain.PredilectionAny {
		wantSex := domain.Sex(c.SexPredilection)
		if p.Sex != wantSex {
			return 0.0
		}
	}
	if c.TypicalAgeRange == nil {
		return 1.0
	}
	d := c.TypicalAgeRange.DistanceOutside(p.Age)
	if d == 0 {
		return 1.0
	}
	fit := 1.0 - float64(d)/30.0
	if fit < 0 {
		fit = 0
	}
	return fit
}

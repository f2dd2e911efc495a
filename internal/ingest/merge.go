package ingest

import "github.com/clinicalpath/dx-engine/internal/domain"

// sourcePrecedence ranks scalar-field precedence: curated > hpo > icd10.
var sourcePrecedence = map[domain.ConditionSource]int{
	domain.SourceCurated: 2,
	domain.SourceHPO:     1,
	domain.SourceICD10:   0,
}

// Merge deduplicates records by normalised name, unioning list fields
// and resolving scalar fields by source precedence. Records are merged
// in the order given; ties in precedence keep the earlier record's
// scalar fields.
func Merge(records []RawRecord) []domain.Condition {
	order := make([]string, 0, len(records))
	byKey := make(map[string]*domain.Condition)

	for _, rec := range records {
		c := rec.Condition
		key := NormalizeName(c.Name)
		existing, ok := byKey[key]
		if !ok {
			cp := c
			byKey[key] = &cp
			order = append(order, key)
			continue
		}
		mergeInto(existing, &c)
	}

	out := make([]domain.Condition, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// mergeInto folds incoming into existing in place.
func mergeInto(existing, incoming *domain.Condition) {
	existing.TypicalSymptoms = unionDedup(existing.TypicalSymptoms, incoming.TypicalSymptoms)
	existing.RareSymptoms = unionDedup(existing.RareSymptoms, incoming.RareSymptoms)
	existing.RedFlagSymptoms = unionDedup(existing.RedFlagSymptoms, incoming.RedFlagSymptoms)
	existing.ICDCodes = unionDedup(existing.ICDCodes, incoming.ICDCodes)
	existing.RecommendedTests = unionDedup(existing.RecommendedTests, incoming.RecommendedTests)

	if sourcePrecedence[incoming.Source] > sourcePrecedence[existing.Source] {
		existing.ConditionID = incoming.ConditionID
		existing.Name = incoming.Name
		existing.RecommendedSpecialist = orString(incoming.RecommendedSpecialist, existing.RecommendedSpecialist)
		existing.UrgencyLevel = incoming.UrgencyLevel
		existing.PrevalenceBucket = incoming.PrevalenceBucket
		existing.IsRareDisease = incoming.IsRareDisease
		if incoming.TypicalAgeRange != nil {
			existing.TypicalAgeRange = incoming.TypicalAgeRange
		}
		if incoming.SexPredilection != "" {
			existing.SexPredilection = incoming.SexPredilection
		}
		existing.Source = incoming.Source
		if incoming.TemporalPattern != "" && incoming.TemporalPattern != domain.TemporalUnspecified {
			existing.TemporalPattern = incoming.TemporalPattern
		}
	}
}

func orString(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func unionDedup(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, items := range [][]string{a, b} {
		for _, v := range items {
			canon := NormalizeName(v)
			if canon == "" || seen[canon] {
				continue
			}
			seen[canon] = true
			out = append(out, v)
		}
	}
	return out
}

package ingest

import "github.com/clinicalpath/dx-engine/internal/domain"

// CuratedSeed returns the small, hand-authored authoritative condition
// set used as worked examples for the differential pipeline. These win
// merge precedence over HPO/ICD-10-derived rows sharing the same
// normalised name.
func CuratedSeed() []RawRecord {
	age := func(min, max int) *domain.AgeRange { return &domain.AgeRange{Min: min, Max: max} }

	records := []domain.Condition{
		{
			ConditionID:           "curated:hypothyroidism",
			Name:                   "Hypothyroidism",
			ICDCodes:               []string{"E03"},
			TypicalSymptoms:        []string{"fatigue", "weight gain", "cold intolerance", "dry skin", "constipation"},
			RareSymptoms:           []string{"myxedema coma", "hoarseness"},
			RecommendedTests:       []string{"TSH", "free T4"},
			RecommendedSpecialist:  "endocrinology",
			UrgencyLevel:           domain.UrgencyRoutine,
			PrevalenceBucket:       domain.PrevalenceCommon,
			IsRareDisease:          false,
			TypicalAgeRange:        age(20, 80),
			SexPredilection:        domain.PredilectionFemale,
			Source:                 domain.SourceCurated,
			TemporalPattern:        domain.TemporalChronic,
		},
		{
			ConditionID:           "curated:myocardial-infarction",
			Name:                   "Myocardial infarction",
			ICDCodes:               []string{"I21"},
			TypicalSymptoms:        []string{"chest pain", "shortness of breath", "sweating", "nausea"},
			RareSymptoms:           []string{"jaw pain", "silent ischemia"},
			RedFlagSymptoms:        []string{"crushing chest pain", "chest pain"},
			RecommendedTests:       []string{"troponin", "ECG", "coronary angiography"},
			RecommendedSpecialist:  "cardiology",
			UrgencyLevel:           domain.UrgencyCritical,
			PrevalenceBucket:       domain.PrevalenceCommon,
			IsRareDisease:          false,
			TypicalAgeRange:        age(40, 90),
			SexPredilection:        domain.PredilectionAny,
			Source:                 domain.SourceCurated,
			TemporalPattern:        domain.TemporalAcute,
		},
		{
			ConditionID:           "curated:migraine",
			Name:                   "Migraine",
			TypicalSymptoms:        []string{"headache", "nausea", "light sensitivity", "vision changes"},
			RecommendedTests:       []string{"neurological exam"},
			RecommendedSpecialist:  "neurology",
			UrgencyLevel:           domain.UrgencyRoutine,
			PrevalenceBucket:       domain.PrevalenceVeryCommon,
			IsRareDisease:          false,
			SexPredilection:        domain.PredilectionFemale,
			Source:                 domain.SourceCurated,
			TemporalPattern:        domain.TemporalAcute,
		},
		{
			ConditionID:           "curated:fabry-disease",
			Name:                   "Fabry disease",
			TypicalSymptoms:        []string{"pain in hands and feet", "angiokeratoma", "decreased sweating"},
			RareSymptoms:           []string{"corneal opacity", "kidney failure"},
			RecommendedTests:       []string{"alpha-galactosidase A assay", "genetic testing"},
			RecommendedSpecialist:  "medical genetics",
			UrgencyLevel:           domain.UrgencyUrgent,
			PrevalenceBucket:       domain.PrevalenceVeryRare,
			IsRareDisease:          true,
			TypicalAgeRange:        age(5, 40),
			SexPredilection:        domain.PredilectionMale,
			Source:                 domain.SourceCurated,
			TemporalPattern:        domain.TemporalChronic,
		},
	}

	out := make([]RawRecord, len(records))
	for i, c := range records {
		out[i] = RawRecord{SourceRow: "curated:" + c.ConditionID, Condition: c}
	}
	return out
}

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "myocardial infarction", NormalizeName("Myocardial-Infarction!"))
	assert.Equal(t, "type 2 diabetes", NormalizeName("Type 2   Diabetes"))
}

func TestIsObservable(t *testing.T) {
	kw := DefaultObservableKeywords()
	assert.True(t, IsObservable("Chronic fatigue and joint pain", kw))
	assert.False(t, IsObservable("Abnormality of karyotype", kw))
}

func TestParseHPO_FiltersByMinPhenotypesAndObservability(t *testing.T) {
	rows := []HPOAnnotationRow{
		{RowNumber: 1, DiseaseID: "OMIM:1", DiseaseName: "Rare Disease A",
			PhenotypeLabels: []string{"pain in joints", "fever", "abnormal karyotype"}},
		{RowNumber: 2, DiseaseID: "OMIM:2", DiseaseName: "Rare Disease B",
			PhenotypeLabels: []string{"abnormal facies"}},
		{RowNumber: 3, DiseaseName: "Missing ID", PhenotypeLabels: []string{"fever"}},
	}
	out, errs := ParseHPO(rows, 2, DefaultObservableKeywords())

	require.Len(t, out, 1)
	assert.Equal(t, "OMIM:1", out[0].Condition.ConditionID)
	assert.ElementsMatch(t, []string{"pain in joints", "fever"}, out[0].Condition.TypicalSymptoms)
	assert.True(t, out[0].Condition.IsRareDisease)
	assert.Equal(t, domain.PrevalenceRare, out[0].Condition.PrevalenceBucket)
	assert.Len(t, errs, 1, "the row missing disease_id is reported, not silently dropped")
}

func TestParseICD10_FiltersByChapterAndKeyword(t *testing.T) {
	rows := []ICD10Row{
		{RowNumber: 1, Code: "J45.0", Description: "Predominantly allergic asthma with cough"},
		{RowNumber: 2, Code: "Z00.0", Description: "Encounter for general exam"}, // chapter Z excluded
		{RowNumber: 3, Code: "F10", Description: "Alcohol dependence"},           // no symptom keyword
		{RowNumber: 4, Code: "", Description: "missing code"},
	}
	out, errs := ParseICD10(rows, ICD10PrevalenceTable)

	require.Len(t, out, 1)
	assert.Equal(t, "icd10:J45.0", out[0].Condition.ConditionID)
	assert.Equal(t, domain.PrevalenceVeryCommon, out[0].Condition.PrevalenceBucket)
	assert.Len(t, errs, 1)
}

func TestParseICD10_UnlistedCategoryDefaultsCommon(t *testing.T) {
	rows := []ICD10Row{{RowNumber: 1, Code: "M54.5", Description: "Low back pain"}}
	out, _ := ParseICD10(rows, ICD10PrevalenceTable)
	require.Len(t, out, 1)
	assert.Equal(t, domain.PrevalenceCommon, out[0].Condition.PrevalenceBucket)
	assert.False(t, out[0].Condition.IsRareDisease)
}

func TestMerge_CuratedWinsOverHPOAndICD10(t *testing.T) {
	curated := CuratedSeed()[1] // myocardial infarction
	hpoVariant := RawRecord{
		SourceRow: "hpo:99",
		Condition: domain.Condition{
			ConditionID: "OMIM:999", Name: "Myocardial Infarction!",
			TypicalSymptoms: []string{"arm pain"}, UrgencyLevel: domain.UrgencyRoutine,
			PrevalenceBucket: domain.PrevalenceRare, IsRareDisease: true, Source: domain.SourceHPO,
		},
	}

	merged := Merge([]RawRecord{hpoVariant, curated})
	require.Len(t, merged, 1, "both records normalize to the same dedup key")

	c := merged[0]
	assert.Equal(t, "curated:myocardial-infarction", c.ConditionID, "curated scalar fields win")
	assert.Equal(t, domain.UrgencyCritical, c.UrgencyLevel)
	assert.Contains(t, c.TypicalSymptoms, "arm pain", "list fields union across sources")
	assert.Contains(t, c.TypicalSymptoms, "chest pain")
}

func TestMerge_PreservesFirstSeenOrder(t *testing.T) {
	a := RawRecord{Condition: domain.Condition{Name: "Condition A", Source: domain.SourceCurated}}
	b := RawRecord{Condition: domain.Condition{Name: "Condition B", Source: domain.SourceCurated}}
	merged := Merge([]RawRecord{a, b})
	require.Len(t, merged, 2)
	assert.Equal(t, "Condition A", merged[0].Name)
	assert.Equal(t, "Condition B", merged[1].Name)
}

func TestUnionDedup_DedupesOnNormalizedForm(t *testing.T) {
	out := unionDedup([]string{"Chest Pain"}, []string{"chest-pain", "Fatigue"})
	assert.Equal(t, []string{"Chest Pain", "Fatigue"}, out)
}

func TestCuratedSeed_AllValid(t *testing.T) {
	for _, rec := range CuratedSeed() {
		c := rec.Condition
		assert.NoError(t, c.Validate(), "curated condition %s", c.ConditionID)
	}
}

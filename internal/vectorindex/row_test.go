package vectorindex

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

func TestBuildFilterClause_NoFiltersProducesEmptyClause(t *testing.T) {
	where, args := buildFilterClause(domain.FilterOp{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildFilterClause_CombinesAllTerms(t *testing.T) {
	rare := true
	age := 40
	where, args := buildFilterClause(domain.FilterOp{IsRareDisease: &rare, SexPredilection: domain.PredilectionFemale, Age: &age})
	assert.Contains(t, where, "is_rare_disease = $1")
	assert.Contains(t, where, "$2")
	assert.Contains(t, where, "$3")
	assert.Contains(t, where, " AND ")
	assert.Equal(t, []interface{}{true, "female", 40}, args)
}

func TestToQuestionMarks(t *testing.T) {
	assert.Equal(t, "", toQuestionMarks(""))
	assert.Equal(t, " WHERE is_rare_disease = ? AND x = ?", toQuestionMarks(" WHERE is_rare_disease = $1 AND x = $2"))
}

func TestSortSearchResults_OrdersByScoreThenID(t *testing.T) {
	results := []domain.SearchResult{
		{Condition: &domain.Condition{ConditionID: "z"}, Score: 0.5},
		{Condition: &domain.Condition{ConditionID: "a"}, Score: 0.9},
		{Condition: &domain.Condition{ConditionID: "b"}, Score: 0.5},
	}
	sortSearchResults(results)
	assert.Equal(t, []string{"a", "b", "z"}, []string{
		results[0].Condition.ConditionID, results[1].Condition.ConditionID, results[2].Condition.ConditionID,
	})
}

func TestScanConditionRow_RoundTripsThroughSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE conditions (
		condition_id TEXT, name TEXT, icd_codes TEXT, typical_symptoms TEXT, rare_symptoms TEXT,
		red_flag_symptoms TEXT, recommended_tests TEXT, recommended_specialist TEXT,
		urgency_level TEXT, prevalence_bucket TEXT, is_rare_disease INTEGER,
		age_min INTEGER, age_max INTEGER, sex_predilection TEXT, source TEXT,
		temporal_pattern TEXT, embedding TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO conditions VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		"curated:migraine", "Migraine", `["G43"]`, `["headache"]`, `[]`, `[]`, `["mri"]`,
		"neurology", "routine", "common", 0, 15, 55, "female", "curated", "acute", `[0.1,0.2]`)
	require.NoError(t, err)

	rows, err := db.Query("SELECT " + conditionColumns + ", embedding FROM conditions")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())

	c, vec, err := scanConditionRow(rows)
	require.NoError(t, err)
	assert.Equal(t, "curated:migraine", c.ConditionID)
	assert.Equal(t, []string{"G43"}, c.ICDCodes)
	assert.Equal(t, []string{"headache"}, c.TypicalSymptoms)
	assert.Equal(t, domain.PredilectionFemale, c.SexPredilection)
	require.NotNil(t, c.TypicalAgeRange)
	assert.Equal(t, 15, c.TypicalAgeRange.Min)
	assert.Equal(t, 55, c.TypicalAgeRange.Max)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

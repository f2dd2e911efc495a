package vectorindex

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// conditionColumns lists the condition columns shared by the Postgres
// and SQLite backends, in scan order.
const conditionColumns = `condition_id, name, icd_codes, typical_symptoms, rare_symptoms,
	red_flag_symptoms, recommended_tests, recommended_specialist,
	urgency_level, prevalence_bucket, is_rare_disease, age_min, age_max,
	sex_predilection, source, temporal_pattern`

// scannableRow is the subset of pgx.Rows / *sql.Rows used to decode a
// condition row; both satisfy it without an adapter.
type scannableRow interface {
	Scan(dest ...interface{}) error
}

// scanConditionRow decodes one conditionColumns+", embedding" row into
// a Condition and its stored vector.
func scanConditionRow(row scannableRow) (*domain.Condition, []float32, error) {
	var (
		c                                                 domain.Condition
		icdRaw, typicalRaw, rareRaw, redFlagRaw, testsRaw  []byte
		urgency, prevalence, sexPred, source, temporal     string
		ageMin, ageMax                                     *int
		embeddingRaw                                       []byte
	)
	if err := row.Scan(
		&c.ConditionID, &c.Name, &icdRaw, &typicalRaw, &rareRaw,
		&redFlagRaw, &testsRaw, &c.RecommendedSpecialist,
		&urgency, &prevalence, &c.IsRareDisease, &ageMin, &ageMax,
		&sexPred, &source, &temporal, &embeddingRaw,
	); err != nil {
		return nil, nil, fmt.Errorf("scan condition row: %w", err)
	}

	c.UrgencyLevel = domain.UrgencyLevel(urgency)
	c.PrevalenceBucket = domain.PrevalenceBucket(prevalence)
	c.SexPredilection = domain.SexPredilection(sexPred)
	c.Source = domain.ConditionSource(source)
	c.TemporalPattern = domain.TemporalPattern(temporal)

	if err := unmarshalAll(
		kv{icdRaw, &c.ICDCodes}, kv{typicalRaw, &c.TypicalSymptoms},
		kv{rareRaw, &c.RareSymptoms}, kv{redFlagRaw, &c.RedFlagSymptoms},
		kv{testsRaw, &c.RecommendedTests},
	); err != nil {
		return nil, nil, err
	}
	if ageMin != nil && ageMax != nil {
		c.TypicalAgeRange = &domain.AgeRange{Min: *ageMin, Max: *ageMax}
	}

	var vec []float32
	if err := json.Unmarshal(embeddingRaw, &vec); err != nil {
		return nil, nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return &c, vec, nil
}

type kv struct {
	raw []byte
	dst interface{}
}

func unmarshalAll(pairs ...kv) error {
	for _, p := range pairs {
		if len(p.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(p.raw, p.dst); err != nil {
			return fmt.Errorf("unmarshal condition field: %w", err)
		}
	}
	return nil
}

// buildFilterClause compiles a domain.FilterOp into a SQL WHERE clause
// and its positional args, a typed-expression-to-native-form
// translation in place of a string-keyed filter dict.
func buildFilterClause(filter domain.FilterOp) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	argN := 1

	if filter.IsRareDisease != nil {
		clauses = append(clauses, fmt.Sprintf("is_rare_disease = $%d", argN))
		args = append(args, *filter.IsRareDisease)
		argN++
	}
	if filter.SexPredilection != "" && filter.SexPredilection != domain.PredilectionAny {
		clauses = append(clauses, fmt.Sprintf("(sex_predilection = $%d OR sex_predilection = 'any' OR sex_predilection = '')", argN))
		args = append(args, string(filter.SexPredilection))
		argN++
	}
	if filter.Age != nil {
		clauses = append(clauses, fmt.Sprintf("(age_min IS NULL OR age_max IS NULL OR ($%d BETWEEN age_min AND age_max))", argN))
		args = append(args, *filter.Age)
		argN++
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE "
	for i, c := range clauses {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

func sortSearchResults(results []domain.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Condition.ConditionID < results[j].Condition.ConditionID
	})
}

package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// SQLiteIndex is a domain.VectorIndex backed by a local SQLite file via
// modernc.org/sqlite's pure-Go driver, for the standalone deployment
// mode that runs without a Postgres dependency.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if absent) the database at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite at %q: %v", domain.ErrIndexUnavailable, path, err)
	}
	return &SQLiteIndex{db: db}, nil
}

func (idx *SQLiteIndex) EnsureCollection(ctx context.Context, dim int) error {
	_, err := idx.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conditions (
	condition_id            TEXT PRIMARY KEY,
	name                     TEXT NOT NULL,
	icd_codes                TEXT NOT NULL DEFAULT '[]',
	typical_symptoms         TEXT NOT NULL DEFAULT '[]',
	rare_symptoms            TEXT NOT NULL DEFAULT '[]',
	red_flag_symptoms        TEXT NOT NULL DEFAULT '[]',
	recommended_tests        TEXT NOT NULL DEFAULT '[]',
	recommended_specialist   TEXT NOT NULL DEFAULT '',
	urgency_level            TEXT NOT NULL,
	prevalence_bucket        TEXT NOT NULL,
	is_rare_disease          INTEGER NOT NULL,
	age_min                  INTEGER,
	age_max                  INTEGER,
	sex_predilection         TEXT NOT NULL DEFAULT 'any',
	source                   TEXT NOT NULL,
	temporal_pattern         TEXT NOT NULL DEFAULT 'unspecified',
	embedding                TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (idx *SQLiteIndex) Upsert(ctx context.Context, points []domain.VectorIndexPoint) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	for _, pt := range points {
		c := pt.Condition
		vec, _ := json.Marshal(pt.Vector)
		icd, _ := json.Marshal(c.ICDCodes)
		typical, _ := json.Marshal(c.TypicalSymptoms)
		rare, _ := json.Marshal(c.RareSymptoms)
		redFlags, _ := json.Marshal(c.RedFlagSymptoms)
		tests, _ := json.Marshal(c.RecommendedTests)
		var ageMin, ageMax interface{}
		if c.TypicalAgeRange != nil {
			ageMin, ageMax = c.TypicalAgeRange.Min, c.TypicalAgeRange.Max
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conditions (
				condition_id, name, icd_codes, typical_symptoms, rare_symptoms,
				red_flag_symptoms, recommended_tests, recommended_specialist,
				urgency_level, prevalence_bucket, is_rare_disease, age_min, age_max,
				sex_predilection, source, temporal_pattern, embedding
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT (condition_id) DO UPDATE SET
				name = excluded.name, icd_codes = excluded.icd_codes,
				typical_symptoms = excluded.typical_symptoms, rare_symptoms = excluded.rare_symptoms,
				red_flag_symptoms = excluded.red_flag_symptoms, recommended_tests = excluded.recommended_tests,
				recommended_specialist = excluded.recommended_specialist, urgency_level = excluded.urgency_level,
				prevalence_bucket = excluded.prevalence_bucket, is_rare_disease = excluded.is_rare_disease,
				age_min = excluded.age_min, age_max = excluded.age_max,
				sex_predilection = excluded.sex_predilection, source = excluded.source,
				temporal_pattern = excluded.temporal_pattern, embedding = excluded.embedding
		`, c.ConditionID, c.Name, string(icd), string(typical), string(rare), string(redFlags), string(tests),
			c.RecommendedSpecialist, string(c.UrgencyLevel), string(c.PrevalenceBucket), c.IsRareDisease,
			ageMin, ageMax, string(c.SexPredilection), string(c.Source), string(c.TemporalPattern), string(vec))
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (idx *SQLiteIndex) Search(ctx context.Context, queryVector []float32, topK int, filter domain.FilterOp) ([]domain.SearchResult, error) {
	where, args := buildFilterClause(filter)
	where = toQuestionMarks(where)
	rows, err := idx.db.QueryContext(ctx, "SELECT "+conditionColumns+", embedding FROM conditions"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		c, vec, err := scanConditionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		sim := cosine(queryVector, vec)
		out = append(out, domain.SearchResult{Condition: c, Score: (sim + 1) / 2})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, rows.Err())
	}
	sortSearchResults(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (idx *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conditions").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// toQuestionMarks rewrites buildFilterClause's $N placeholders into the
// positional "?" placeholders modernc.org/sqlite's driver expects.
func toQuestionMarks(clause string) string {
	out := make([]byte, 0, len(clause))
	i := 0
	for i < len(clause) {
		if clause[i] == '$' {
			j := i + 1
			for j < len(clause) && clause[j] >= '0' && clause[j] <= '9' {
				j++
			}
			out = append(out, '?')
			i = j
			continue
		}
		out = append(out, clause[i])
		i++
	}
	return string(out)
}

// Close releases the underlying database handle.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}

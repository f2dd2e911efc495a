package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Postgres is a domain.VectorIndex backed by a conditions table, using
// pgx/v5's pool the way internal/repository's stores do. Vectors are
// stored as a JSON float array column rather than a pgvector extension
// column, since no vector-similarity extension ships in the reference
// dependency set; cosine similarity is computed in Go after a
// demographic/rarity pre-filter narrows the candidate rows in SQL.
type Postgres struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewPostgres wraps pool with a circuit breaker named "vectorindex",
// matching the one-breaker-per-dependency convention of the reference
// resilient client.
func NewPostgres(pool *pgxpool.Pool, logger *logrus.Logger) *Postgres {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vectorindex",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name, "from": from.String(), "to": to.String(),
			}).Warn("vectorindex circuit breaker state change")
		},
	})
	return &Postgres{pool: pool, breaker: breaker, logger: logger}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conditions (
	condition_id            TEXT PRIMARY KEY,
	name                     TEXT NOT NULL,
	icd_codes                JSONB NOT NULL DEFAULT '[]',
	typical_symptoms         JSONB NOT NULL DEFAULT '[]',
	rare_symptoms            JSONB NOT NULL DEFAULT '[]',
	red_flag_symptoms        JSONB NOT NULL DEFAULT '[]',
	recommended_tests        JSONB NOT NULL DEFAULT '[]',
	recommended_specialist   TEXT NOT NULL DEFAULT '',
	urgency_level            TEXT NOT NULL,
	prevalence_bucket        TEXT NOT NULL,
	is_rare_disease          BOOLEAN NOT NULL,
	age_min                  INT,
	age_max                  INT,
	sex_predilection         TEXT NOT NULL DEFAULT 'any',
	source                   TEXT NOT NULL,
	temporal_pattern         TEXT NOT NULL DEFAULT 'unspecified',
	embedding                JSONB NOT NULL
);
`

// EnsureCollection implements domain.VectorIndex: idempotently creates
// the conditions table. dim is accepted for interface parity but not
// enforced by a column constraint since embeddings are stored as JSONB.
func (p *Postgres) EnsureCollection(ctx context.Context, dim int) error {
	_, err := p.withRetry(ctx, func(ctx context.Context) (interface{}, error) {
		_, execErr := p.pool.Exec(ctx, schemaDDL)
		return nil, execErr
	})
	return err
}

func (p *Postgres) Upsert(ctx context.Context, points []domain.VectorIndexPoint) error {
	_, err := p.withRetry(ctx, func(ctx context.Context) (interface{}, error) {
		tx, txErr := p.pool.Begin(ctx)
		if txErr != nil {
			return nil, txErr
		}
		defer tx.Rollback(ctx)
		for _, pt := range points {
			c := pt.Condition
			vec, marshalErr := json.Marshal(pt.Vector)
			if marshalErr != nil {
				return nil, marshalErr
			}
			icd, _ := json.Marshal(c.ICDCodes)
			typical, _ := json.Marshal(c.TypicalSymptoms)
			rare, _ := json.Marshal(c.RareSymptoms)
			redFlags, _ := json.Marshal(c.RedFlagSymptoms)
			tests, _ := json.Marshal(c.RecommendedTests)
			var ageMin, ageMax *int
			if c.TypicalAgeRange != nil {
				ageMin, ageMax = &c.TypicalAgeRange.Min, &c.TypicalAgeRange.Max
			}
			_, execErr := tx.Exec(ctx, `
				INSERT INTO conditions (
					condition_id, name, icd_codes, typical_symptoms, rare_symptoms,
					red_flag_symptoms, recommended_tests, recommended_specialist,
					urgency_level, prevalence_bucket, is_rare_disease, age_min, age_max,
					sex_predilection, source, temporal_pattern, embedding
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (condition_id) DO UPDATE SET
					name = EXCLUDED.name,
					icd_codes = EXCLUDED.icd_codes,
					typical_symptoms = EXCLUDED.typical_symptoms,
					rare_symptoms = EXCLUDED.rare_symptoms,
					red_flag_symptoms = EXCLUDED.red_flag_symptoms,
					recommended_tests = EXCLUDED.recommended_tests,
					recommended_specialist = EXCLUDED.recommended_specialist,
					urgency_level = EXCLUDED.urgency_level,
					prevalence_bucket = EXCLUDED.prevalence_bucket,
					is_rare_disease = EXCLUDED.is_rare_disease,
					age_min = EXCLUDED.age_min,
					age_max = EXCLUDED.age_max,
					sex_predilection = EXCLUDED.sex_predilection,
					source = EXCLUDED.source,
					temporal_pattern = EXCLUDED.temporal_pattern,
					embedding = EXCLUDED.embedding
			`, c.ConditionID, c.Name, icd, typical, rare, redFlags, tests, c.RecommendedSpecialist,
				string(c.UrgencyLevel), string(c.PrevalenceBucket), c.IsRareDisease, ageMin, ageMax,
				string(c.SexPredilection), string(c.Source), string(c.TemporalPattern), vec)
			if execErr != nil {
				return nil, execErr
			}
		}
		return nil, tx.Commit(ctx)
	})
	return err
}

func (p *Postgres) Search(ctx context.Context, queryVector []float32, topK int, filter domain.FilterOp) ([]domain.SearchResult, error) {
	result, err := p.withRetry(ctx, func(ctx context.Context) (interface{}, error) {
		where, args := buildFilterClause(filter)
		rows, queryErr := p.pool.Query(ctx, "SELECT "+conditionColumns+", embedding FROM conditions"+where, args...)
		if queryErr != nil {
			return nil, queryErr
		}
		defer rows.Close()

		var out []domain.SearchResult
		for rows.Next() {
			c, vec, scanErr := scanConditionRow(rows)
			if scanErr != nil {
				return nil, scanErr
			}
			sim := cosine(queryVector, vec)
			out = append(out, domain.SearchResult{Condition: c, Score: (sim + 1) / 2})
		}
		if rows.Err() != nil {
			return nil, rows.Err()
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	results := result.([]domain.SearchResult)
	sortSearchResults(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	result, err := p.withRetry(ctx, func(ctx context.Context) (interface{}, error) {
		var n int
		scanErr := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM conditions").Scan(&n)
		return n, scanErr
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// withRetry runs fn through the circuit breaker with exponential
// backoff on top, so a flaky connection gets three tries (waiting 100ms,
// then 400ms) before the breaker even records a failure.
func (p *Postgres) withRetry(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = 100 * time.Millisecond
	schedule.Multiplier = 4
	schedule.RandomizationFactor = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(schedule, 2), ctx)
	result, err := p.breaker.Execute(func() (interface{}, error) {
		var res interface{}
		retryErr := backoff.Retry(func() error {
			r, callErr := fn(ctx)
			if callErr != nil {
				return callErr
			}
			res = r
			return nil
		}, bo)
		return res, retryErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return result, nil
}

package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Pipeline transforms source ontology rows into canonical Condition
// records, embeds them via the text encoder, and loads them into the
// vector index.
type Pipeline struct {
	encoder    domain.TextEncoder
	index      domain.VectorIndex
	checkpoint *CheckpointStore
	logger     *logrus.Logger
}

// NewPipeline builds a Pipeline. checkpoint may be nil to disable
// restart skipping (every run re-upserts everything, which is still
// correct since upsert is idempotent on condition_id).
func NewPipeline(encoder domain.TextEncoder, index domain.VectorIndex, checkpoint *CheckpointStore, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{encoder: encoder, index: index, checkpoint: checkpoint, logger: logger}
}

// Result summarizes one Run.
type Result struct {
	Loaded  int
	Skipped int
	Errors  []error
}

// Run merges hpo, icd10 and the curated seed, validates each resulting
// Condition, and upserts it into the index with a freshly computed
// embedding. A malformed row is logged and skipped; an index outage
// aborts the whole run.
func (p *Pipeline) Run(ctx context.Context, hpoRows []HPOAnnotationRow, icd10Rows []ICD10Row, minPhenotypes int, observableKeywords []string) (*Result, error) {
	result := &Result{}

	hpoRecords, hpoErrs := ParseHPO(hpoRows, minPhenotypes, observableKeywords)
	result.Errors = append(result.Errors, hpoErrs...)

	icd10Records, icd10Errs := ParseICD10(icd10Rows, ICD10PrevalenceTable)
	result.Errors = append(result.Errors, icd10Errs...)

	for _, e := range result.Errors {
		p.logger.WithError(e).Warn("ingest row skipped")
	}

	var all []RawRecord
	all = append(all, hpoRecords...)
	all = append(all, icd10Records...)
	all = append(all, CuratedSeed()...)

	conditions := Merge(all)

	if err := p.index.EnsureCollection(ctx, p.encoder.Dimension()); err != nil {
		return result, fmt.Errorf("%w: ensure_collection: %v", domain.ErrSchemaMismatch, err)
	}

	var points []domain.VectorIndexPoint
	for i := range conditions {
		c := &conditions[i]
		if err := c.Validate(); err != nil {
			result.Errors = append(result.Errors, err)
			p.logger.WithError(err).WithField("condition_id", c.ConditionID).Warn("ingest condition failed validation, skipped")
			continue
		}

		if p.checkpoint != nil {
			seen, err := p.checkpoint.Seen(ctx, c.ConditionID)
			if err != nil {
				return result, fmt.Errorf("%w: checkpoint lookup: %v", domain.ErrIndexUnavailable, err)
			}
			if seen {
				result.Skipped++
				continue
			}
		}

		vector, err := p.encoder.Encode(ctx, c.VectorText())
		if err != nil {
			result.Errors = append(result.Errors, err)
			p.logger.WithError(err).WithField("condition_id", c.ConditionID).Warn("ingest condition embedding failed, skipped")
			continue
		}
		points = append(points, domain.VectorIndexPoint{Condition: c, Vector: vector})
	}

	if len(points) > 0 {
		if err := p.index.Upsert(ctx, points); err != nil {
			return result, fmt.Errorf("%w: upsert: %v", domain.ErrIndexUnavailable, err)
		}
	}
	result.Loaded = len(points)

	if p.checkpoint != nil {
		for _, pt := range points {
			if err := p.checkpoint.Commit(ctx, pt.Condition.ConditionID); err != nil {
				p.logger.WithError(err).WithField("condition_id", pt.Condition.ConditionID).Warn("ingest checkpoint commit failed")
			}
		}
	}

	return result, nil
}

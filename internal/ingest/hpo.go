package ingest

import (
	"fmt"
	"strconv"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// HPOAnnotationRow is one row of an HPO phenotype.hpoa-shaped source
// file: a disease and its associated phenotype labels.
type HPOAnnotationRow struct {
	RowNumber       int
	DiseaseID       string
	DiseaseName     string
	PhenotypeLabels []string
	RedFlagLabels   []string
}

// ParseHPO filters and converts HPO annotation rows into RawRecords,
// keeping only diseases with at least minPhenotypes observable
// phenotype terms. Malformed rows are skipped, not fatal to the stage.
func ParseHPO(rows []HPOAnnotationRow, minPhenotypes int, observableKeywords []string) ([]RawRecord, []error) {
	var out []RawRecord
	var errs []error

	for _, row := range rows {
		if row.DiseaseID == "" || row.DiseaseName == "" {
			errs = append(errs, fmt.Errorf("hpo row %d: missing disease_id or disease_name", row.RowNumber))
			continue
		}
		observable := make([]string, 0, len(row.PhenotypeLabels))
		for _, label := range row.PhenotypeLabels {
			if IsObservable(label, observableKeywords) {
				observable = append(observable, label)
			}
		}
		if len(observable) < minPhenotypes {
			continue
		}

		out = append(out, RawRecord{
			SourceRow: "hpo:" + strconv.Itoa(row.RowNumber),
			Condition: domain.Condition{
				ConditionID:      row.DiseaseID,
				Name:             row.DiseaseName,
				TypicalSymptoms:  observable,
				RedFlagSymptoms:  row.RedFlagLabels,
				UrgencyLevel:     domain.UrgencyRoutine,
				PrevalenceBucket: domain.PrevalenceRare,
				IsRareDisease:    true,
				SexPredilection:  domain.PredilectionAny,
				Source:           domain.SourceHPO,
				TemporalPattern:  domain.TemporalUnspecified,
			},
		})
	}
	return out, errs
}

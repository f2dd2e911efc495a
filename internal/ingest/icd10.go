package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// ICD10Row is one row of an ICD-10-CM code table: a code and its
// short clinical description.
type ICD10Row struct {
	RowNumber   int
	Code        string
	Description string
}

// symptomLikeKeywords gates ICD-10 rows the same way DefaultObservableKeywords
// gates HPO phenotypes: any symptom-like keyword qualifies, so the two
// sources share one list rather than maintaining a separate one.
var symptomLikeKeywords = DefaultObservableKeywords()

// ParseICD10 filters and converts ICD-10-CM rows into RawRecords,
// keeping chapters A-N whose description contains a symptom-like
// keyword.
func ParseICD10(rows []ICD10Row, prevalenceTable map[string]domain.PrevalenceBucket) ([]RawRecord, []error) {
	var out []RawRecord
	var errs []error

	for _, row := range rows {
		if row.Code == "" || row.Description == "" {
			errs = append(errs, fmt.Errorf("icd10 row %d: missing code or description", row.RowNumber))
			continue
		}
		category := categoryOf(row.Code)
		if !icd10ChapterRange(category) {
			continue
		}
		if !IsObservable(row.Description, symptomLikeKeywords) {
			continue
		}

		bucket, ok := prevalenceTable[category]
		if !ok {
			bucket = domain.PrevalenceCommon
		}

		out = append(out, RawRecord{
			SourceRow: "icd10:" + strconv.Itoa(row.RowNumber),
			Condition: domain.Condition{
				ConditionID:      "icd10:" + row.Code,
				Name:             row.Description,
				ICDCodes:         []string{row.Code},
				TypicalSymptoms:  []string{row.Description},
				UrgencyLevel:     domain.UrgencyRoutine,
				PrevalenceBucket: bucket,
				IsRareDisease:    bucket.IsRare(),
				SexPredilection:  domain.PredilectionAny,
				Source:           domain.SourceICD10,
				TemporalPattern:  domain.TemporalUnspecified,
			},
		})
	}
	return out, errs
}

func categoryOf(code string) string {
	clean := strings.ToUpper(strings.ReplaceAll(code, ".", ""))
	if len(clean) < 3 {
		return clean
	}
	return clean[:3]
}

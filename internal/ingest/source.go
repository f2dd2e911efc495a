package ingest

import (
	"regexp"
	"strings"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// RawRecord is one source ontology row before merge, carrying enough to
// resolve dedup/merge precedence. Source-specific parsers (HPO, ICD-10,
// curated) each produce a stream of these.
type RawRecord struct {
	Condition  domain.Condition
	SourceRow  string // a source+row identifier, e.g. "hpo:142"; Merge drops it, and the checkpoint is keyed by condition_id
}

// DefaultObservableKeywords is the curated token set used to decide
// whether an HPO phenotype label is "observable". It is a configuration
// asset, not a hard-coded gate.
func DefaultObservableKeywords() []string {
	return []string{
		"pain", "fever", "fatigue", "cough", "rash", "headache", "nausea",
		"weakness", "swelling", "bleeding", "vomiting", "dizziness", "weight",
		"breath", "vision", "seizure", "numbness", "tremor", "itching",
		"diarrhea", "constipation", "jaundice", "cyanosis",
	}
}

// ICD10PrevalenceTable maps the 3-character ICD-10-CM category prefix
// to a PrevalenceBucket via a static table keyed by the 3-char category.
// Unlisted categories default to common.
var ICD10PrevalenceTable = map[string]domain.PrevalenceBucket{
	"E03": domain.PrevalenceCommon,     // hypothyroidism
	"E10": domain.PrevalenceCommon,     // type 1 diabetes
	"E11": domain.PrevalenceVeryCommon, // type 2 diabetes
	"I10": domain.PrevalenceVeryCommon, // essential hypertension
	"J45": domain.PrevalenceVeryCommon, // asthma
	"K21": domain.PrevalenceVeryCommon, // GERD
	"G35": domain.PrevalenceUncommon,   // multiple sclerosis
	"D61": domain.PrevalenceRare,       // aplastic anemia
}

// IsObservable reports whether label contains at least one curated
// keyword, case-insensitively.
func IsObservable(label string, keywords []string) bool {
	lower := strings.ToLower(label)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// icd10ChapterRange reports whether a 3-character ICD-10-CM category
// falls in chapters A-N; O-Z are dropped.
func icd10ChapterRange(category string) bool {
	if len(category) == 0 {
		return false
	}
	letter := category[0]
	return letter >= 'A' && letter <= 'N'
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName computes the dedup key for a condition name: lowercase,
// strip non-alphanumeric, collapse spaces.
func NormalizeName(name string) string {
	lower := strings.ToLower(name)
	stripped := nonAlphanumeric.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

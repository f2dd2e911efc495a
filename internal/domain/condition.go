package domain

import "fmt"

// Condition is a canonical disease/phenotype record stored in the vector
// index as a payload alongside its embedding vector.
type Condition struct {
	ConditionID           string
	Name                  string
	ICDCodes              []string
	TypicalSymptoms       []string
	RareSymptoms          []string
	RedFlagSymptoms       []string
	RecommendedTests      []string
	RecommendedSpecialist string
	UrgencyLevel          UrgencyLevel
	PrevalenceBucket      PrevalenceBucket
	IsRareDisease         bool
	TypicalAgeRange       *AgeRange
	SexPredilection       SexPredilection
	Source                ConditionSource
	TemporalPattern       TemporalPattern
}

// Validate checks the §3 Condition invariants.
func (c *Condition) Validate() error {
	if c.ConditionID == "" {
		return fmt.Errorf("%w: condition_id is required", ErrInvalidInput)
	}
	if len(c.TypicalSymptoms) == 0 {
		return fmt.Errorf("%w: condition %q must have at least one typical symptom", ErrInvalidInput, c.ConditionID)
	}
	if !c.UrgencyLevel.Valid() {
		return fmt.Errorf("%w: condition %q has invalid urgency_level %q", ErrInvalidInput, c.ConditionID, c.UrgencyLevel)
	}
	if !c.PrevalenceBucket.Valid() {
		return fmt.Errorf("%w: condition %q has invalid prevalence_bucket %q", ErrInvalidInput, c.ConditionID, c.PrevalenceBucket)
	}
	if c.IsRareDisease != c.PrevalenceBucket.IsRare() && c.Source != SourceCurated {
		return fmt.Errorf("%w: condition %q is_rare_disease=%v inconsistent with prevalence_bucket=%q", ErrInvalidInput, c.ConditionID, c.IsRareDisease, c.PrevalenceBucket)
	}
	if c.SexPredilection != "" && !c.SexPredilection.Valid() {
		return fmt.Errorf("%w: condition %q has invalid sex_predilection %q", ErrInvalidInput, c.ConditionID, c.SexPredilection)
	}
	if !c.Source.Valid() {
		return fmt.Errorf("%w: condition %q has invalid source %q", ErrInvalidInput, c.ConditionID, c.Source)
	}
	return nil
}

// VectorText composes the exact text used to build the condition's
// embedding vector during ingest.
func (c *Condition) VectorText() string {
	text := c.Name + "."
	if len(c.TypicalSymptoms) > 0 {
		text += " Typical symptoms: " + joinComma(c.TypicalSymptoms) + "."
	}
	if len(c.RareSymptoms) > 0 {
		text += " Rare symptoms: " + joinComma(c.RareSymptoms) + "."
	}
	return text
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

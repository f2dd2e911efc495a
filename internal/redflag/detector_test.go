package redflag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

func TestDetector_Match_Emergency(t *testing.T) {
	d := New(DefaultLexicon())
	hits, sev := d.Match([]string{"patient reports crushing chest pain radiating to the arm"})
	assert.Contains(t, hits, "chest pain")
	assert.Contains(t, hits, "crushing chest pain")
	assert.Equal(t, SeverityEmergency, sev)
}

func TestDetector_Match_WarningOnly(t *testing.T) {
	d := New(DefaultLexicon())
	hits, sev := d.Match([]string{"patient has had night sweats and high fever for a week"})
	assert.ElementsMatch(t, []string{"high fever", "night sweats"}, hits)
	assert.Equal(t, SeverityWarning, sev)
}

func TestDetector_Match_NoHits(t *testing.T) {
	d := New(DefaultLexicon())
	hits, sev := d.Match([]string{"mild itchy rash on the forearm"})
	assert.Nil(t, hits)
	assert.Equal(t, Severity(""), sev)
}

func TestDetector_Match_WordBoundary(t *testing.T) {
	d := New(DefaultLexicon())
	// "chest painting" must not fire "chest pain".
	hits, _ := d.Match([]string{"hobbyist enjoys chest painting on weekends"})
	assert.Empty(t, hits)
}

func TestDetector_Match_CaseInsensitive(t *testing.T) {
	d := New(DefaultLexicon())
	hits, sev := d.Match([]string{"SEIZURE observed by bystander"})
	assert.Contains(t, hits, "seizure")
	assert.Equal(t, SeverityEmergency, sev)
}

func TestDetector_MatchCase(t *testing.T) {
	d := New(DefaultLexicon())
	p := &domain.PatientCase{
		ChiefComplaint: "sudden onset of slurred speech",
		Symptoms:       []domain.Symptom{{Description: "facial drooping on the left side"}},
	}
	hits, sev := d.MatchCase(p)
	assert.Contains(t, hits, "slurred speech")
	assert.Contains(t, hits, "facial drooping")
	assert.Equal(t, SeverityEmergency, sev)
}

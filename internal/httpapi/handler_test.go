package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalpath/dx-engine/internal/analysis"
	"github.com/clinicalpath/dx-engine/internal/cache"
	"github.com/clinicalpath/dx-engine/internal/domain"
	"github.com/clinicalpath/dx-engine/internal/redflag"
	"github.com/clinicalpath/dx-engine/internal/retrieval"
	"github.com/clinicalpath/dx-engine/internal/scoring"
	"github.com/clinicalpath/dx-engine/internal/triage"
)

type fakeEncoder struct {
	err      error
	failText map[string]error
}

func (f *fakeEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err, ok := f.failText[text]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}
func (f *fakeEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (f *fakeEncoder) Dimension() int  { return 2 }
func (f *fakeEncoder) ModelID() string { return "fake-v1" }

type fakeIndex struct {
	results []domain.SearchResult
	err     error
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, dim int) error { return nil }
func (f *fakeIndex) Upsert(ctx context.Context, points []domain.VectorIndexPoint) error {
	return nil
}
func (f *fakeIndex) Count(ctx context.Context) (int, error) { return len(f.results), nil }
func (f *fakeIndex) Search(ctx context.Context, queryVector []float32, topK int, filter domain.FilterOp) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filter.IsRareDisease != nil && *filter.IsRareDisease {
		return nil, nil
	}
	return f.results, nil
}

func newTestHandler(idx *fakeIndex, enc domain.TextEncoder) *Handler {
	r := retrieval.New(enc, idx, nil, retrieval.Config{}, nil)
	s := scoring.New(domain.DefaultScoringWeights(), 10)
	c := triage.New(0.85, 0.60, 0.40, 10, 5)
	rf := redflag.New(redflag.DefaultLexicon())
	qc := cache.NewQueryCache(10, time.Minute)
	svc := analysis.New(rf, r, s, c, qc, time.Second, nil)
	return NewHandler(svc, nil)
}

func migraineResult() domain.SearchResult {
	return domain.SearchResult{
		Score: 0.9,
		Condition: &domain.Condition{
			ConditionID: "curated:migraine", Name: "Migraine",
			TypicalSymptoms: []string{"headache"}, UrgencyLevel: domain.UrgencyRoutine,
			Source: domain.SourceCurated,
		},
	}
}

func TestHandleAnalyze_Success(t *testing.T) {
	h := newTestHandler(&fakeIndex{results: []domain.SearchResult{migraineResult()}}, &fakeEncoder{})
	body := `{"case_id":"c1","age":30,"sex":"female","chief_complaint":"headache","symptoms":[{"description":"headache","severity":"moderate","duration_days":2,"frequency":"episodic"}]}`

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.DiagnosticResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.PrimaryDiagnosis)
	assert.Equal(t, "curated:migraine", result.PrimaryDiagnosis.Condition.ConditionID)
}

func TestHandleAnalyze_MalformedJSONReturnsBadRequest(t *testing.T) {
	h := newTestHandler(&fakeIndex{}, &fakeEncoder{})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var svcErr domain.ServiceError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svcErr))
	assert.Equal(t, "INVALID_INPUT", svcErr.Code)
}

func TestHandleAnalyze_InvalidPatientCaseReturnsBadRequest(t *testing.T) {
	h := newTestHandler(&fakeIndex{}, &fakeEncoder{})
	body := `{"case_id":"c1","age":999,"sex":"female","chief_complaint":"headache","symptoms":[{"description":"headache"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyze_ServiceUnavailableMapsTo503(t *testing.T) {
	h := newTestHandler(&fakeIndex{err: assertErr{}}, &fakeEncoder{})
	body := `{"case_id":"c1","age":30,"sex":"female","chief_complaint":"headache","symptoms":[{"description":"headache","severity":"moderate","duration_days":2,"frequency":"episodic"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleAnalyze_ServiceDegradedMapsTo503(t *testing.T) {
	h := newTestHandler(&fakeIndex{}, &fakeEncoder{failText: map[string]error{"headache": assertErr{}}})
	body := `{"case_id":"c1","age":30,"sex":"female","chief_complaint":"headache","symptoms":[{"description":"headache","severity":"moderate","duration_days":2,"frequency":"episodic"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var svcErr domain.ServiceError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svcErr))
	assert.Equal(t, "SERVICE_DEGRADED", svcErr.Code)
}

func TestHandleAnalyze_RejectsNonPOST(t *testing.T) {
	h := newTestHandler(&fakeIndex{}, &fakeEncoder{})
	req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(&fakeIndex{}, &fakeEncoder{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type assertErr struct{}

func (assertErr) Error() string { return "index down" }

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/analysis"
	"github.com/clinicalpath/dx-engine/internal/domain"
)

// Handler exposes analysis.Service over HTTP. net/http replaces the
// teacher's gin router here: the surface is a single JSON endpoint, and
// gin's routing/middleware machinery has nothing left to do once the
// MCP tool/resource surface it served is gone (see DESIGN.md).
type Handler struct {
	service *analysis.Service
	logger  *logrus.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *analysis.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns the handler's mux, ready to pass to http.Server.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", h.handleAnalyze)
	mux.HandleFunc("/healthz", h.handleHealth)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type analyzeRequest struct {
	CaseID         string          `json:"case_id"`
	Age            int             `json:"age"`
	Sex            string          `json:"sex"`
	ChiefComplaint string          `json:"chief_complaint"`
	Symptoms       []symptomInput  `json:"symptoms"`
}

type symptomInput struct {
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	DurationDays int    `json:"duration_days"`
	Frequency    string `json:"frequency"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewServiceError(
			domain.ErrInvalidInput, requestID(r), err.Error()))
		return
	}

	p := &domain.PatientCase{
		CaseID:         req.CaseID,
		Age:            req.Age,
		Sex:            domain.Sex(req.Sex),
		ChiefComplaint: req.ChiefComplaint,
	}
	for _, s := range req.Symptoms {
		p.Symptoms = append(p.Symptoms, domain.Symptom{
			Description:  s.Description,
			Severity:     domain.Severity(s.Severity),
			DurationDays: s.DurationDays,
			Frequency:    domain.Frequency(s.Frequency),
		})
	}

	start := time.Now()
	result, err := h.service.Analyze(r.Context(), p, analysis.Options{})
	h.logger.WithFields(logrus.Fields{
		"case_id":  req.CaseID,
		"duration": time.Since(start),
	}).Info("analyze request handled")

	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return ""
}

func writeServiceError(w http.ResponseWriter, reqID string, err error) {
	svcErr := domain.NewServiceError(err, reqID, err.Error())
	status := http.StatusInternalServerError
	switch {
	case errorIsInvalidInput(err):
		status = http.StatusBadRequest
	case errorIsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, svcErr)
}

func writeError(w http.ResponseWriter, status int, svcErr *domain.ServiceError) {
	writeJSON(w, status, svcErr)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

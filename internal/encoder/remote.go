package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// RemoteEncoder calls an out-of-process embedding service over HTTP,
// guarded by a circuit breaker and a token-bucket rate limiter, the same
// resilience shape the reference client pool wraps around each external
// dependency (pkg/external/circuit_breaker.go).
type RemoteEncoder struct {
	baseURL    string
	modelID    string
	dim        int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// RemoteEncoderConfig configures a RemoteEncoder.
type RemoteEncoderConfig struct {
	BaseURL   string
	ModelID   string
	Dimension int
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// NewRemoteEncoder builds a RemoteEncoder with its own circuit breaker
// named after the model, mirroring the reference per-dependency breakers.
func NewRemoteEncoder(cfg RemoteEncoderConfig, logger *logrus.Logger) *RemoteEncoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "encoder:" + cfg.ModelID,
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
			}).Warn("encoder circuit breaker state change")
		},
	})
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	return &RemoteEncoder{
		baseURL:    cfg.BaseURL,
		modelID:    cfg.ModelID,
		dim:        cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

func (e *RemoteEncoder) Dimension() int  { return e.dim }
func (e *RemoteEncoder) ModelID() string { return e.modelID }

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Encode implements domain.TextEncoder.
func (e *RemoteEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeBatch implements domain.TextEncoder, retrying transient failures
// with exponential backoff before the breaker sees the call as a unit.
func (e *RemoteEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrEncoderUnavailable, err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)

	result, err := e.breaker.Execute(func() (interface{}, error) {
		var vectors [][]float32
		retryErr := backoff.Retry(func() error {
			v, callErr := e.doCall(ctx, texts)
			if callErr != nil {
				return callErr
			}
			vectors = v
			return nil
		}, bo)
		return vectors, retryErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoderUnavailable, err)
	}
	return result.([][]float32), nil
}

func (e *RemoteEncoder) doCall(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.modelID, Texts: texts})
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("encoder service returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("encoder service rejected request: %d %s", resp.StatusCode, string(data)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(err)
	}
	if len(out.Vectors) != len(texts) {
		return nil, backoff.Permanent(fmt.Errorf("encoder service returned %d vectors for %d texts", len(out.Vectors), len(texts)))
	}
	return out.Vectors, nil
}

package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// LocalEncoder is a deterministic, dependency-free TextEncoder. It hashes
// overlapping token shingles into a fixed-width vector and L2-normalizes
// the result, so that repeated calls on the same text are bit-identical
// and semantically related clinical phrases land closer together than
// unrelated ones (shared tokens hash to the same buckets).
//
// There is no embedding-model runtime anywhere in the reference stack
// this project grew out of, so this is the one piece of the pipeline
// implemented directly on the standard library rather than a library
// call (see DESIGN.md).
type LocalEncoder struct {
	dim     int
	modelID string
	logger  *logrus.Logger
}

// NewLocalEncoder builds a LocalEncoder producing vectors of the given
// dimension.
func NewLocalEncoder(dim int, logger *logrus.Logger) *LocalEncoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalEncoder{dim: dim, modelID: "local-shingle-hash-v1", logger: logger}
}

func (e *LocalEncoder) Dimension() int    { return e.dim }
func (e *LocalEncoder) ModelID() string   { return e.modelID }

// Encode implements domain.TextEncoder.
func (e *LocalEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoderUnavailable, ctx.Err())
	default:
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot encode empty text", domain.ErrInvalidInput)
	}
	vec := make([]float64, e.dim)
	for _, tok := range shingles(normalize(text)) {
		h := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint64(h[0:8]) % uint64(e.dim)
		sign := 1.0
		if h[8]&1 == 1 {
			sign = -1.0
		}
		weight := float64(h[9]%251) / 250.0
		vec[idx] += sign * (0.5 + 0.5*weight)
	}
	return toUnitFloat32(vec), nil
}

// EncodeBatch implements domain.TextEncoder by encoding sequentially;
// LocalEncoder has no network round trip to amortize.
func (e *LocalEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// shingles returns unigrams and bigrams of whitespace tokens, giving
// multi-word clinical terms ("chest pain") their own hash bucket
// distinct from either word alone.
func shingles(text string) []string {
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens)*2)
	for i, tok := range tokens {
		out = append(out, tok)
		if i+1 < len(tokens) {
			out = append(out, tok+" "+tokens[i+1])
		}
	}
	return out
}

func toUnitFloat32(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

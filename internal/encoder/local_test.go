package encoder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

func TestLocalEncoder_Deterministic(t *testing.T) {
	e := NewLocalEncoder(64, nil)
	ctx := context.Background()

	a, err := e.Encode(ctx, "crushing chest pain")
	require.NoError(t, err)
	b, err := e.Encode(ctx, "crushing chest pain")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocalEncoder_UnitLength(t *testing.T) {
	e := NewLocalEncoder(64, nil)
	v, err := e.Encode(context.Background(), "severe abdominal pain with fever")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEncoder_DimensionAndModelID(t *testing.T) {
	e := NewLocalEncoder(128, nil)
	assert.Equal(t, 128, e.Dimension())
	assert.Equal(t, "local-shingle-hash-v1", e.ModelID())
}

func TestLocalEncoder_RejectsEmptyText(t *testing.T) {
	e := NewLocalEncoder(64, nil)
	_, err := e.Encode(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLocalEncoder_RespectsCancelledContext(t *testing.T) {
	e := NewLocalEncoder(64, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Encode(ctx, "fever")
	assert.ErrorIs(t, err, domain.ErrEncoderUnavailable)
}

func TestLocalEncoder_EncodeBatch(t *testing.T) {
	e := NewLocalEncoder(32, nil)
	out, err := e.EncodeBatch(context.Background(), []string{"fatigue", "weight loss"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	single, err := e.Encode(context.Background(), "fatigue")
	require.NoError(t, err)
	assert.Equal(t, single, out[0])
}

func TestLocalEncoder_SimilarTextsCloserThanUnrelated(t *testing.T) {
	e := NewLocalEncoder(256, nil)
	ctx := context.Background()
	a, _ := e.Encode(ctx, "severe chest pain radiating to left arm")
	b, _ := e.Encode(ctx, "chest pain radiating to the left arm")
	c, _ := e.Encode(ctx, "itchy rash on both forearms after gardening")

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package similarity

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	calls atomic.Int32
	dim   int
	err   error
}

func (f *fakeEncoder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		// Reuse the hashed vector so similar texts stay similar.
		v := HashVector(t)
		if f.dim != Dimension {
			v = make([]float32, f.dim)
			v[0] = 1
		}
		out[i] = v
	}
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashVector(t *testing.T) {
	tests := []struct {
		name string
		text string
		zero bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", false},
		{"tab and newline", "\t\n", false},
		{"words", "Learn React basics", false},
		{"punctuation only", "!!!", false},
		{"unicode", "Привет мир", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := HashVector(tt.text)
			require.Len(t, v, Dimension)
			if tt.zero {
				assert.Zero(t, norm(v))
			} else {
				assert.InDelta(t, 1.0, norm(v), 1e-5)
			}
		})
	}
}

func TestHashVector_Deterministic(t *testing.T) {
	assert.Equal(t, HashVector("Go concurrency"), HashVector("go  CONCURRENCY"))
}

func TestProvider_FallbackOnlyWithoutFactory(t *testing.T) {
	p := New(nil)
	ctx := context.Background()

	assert.True(t, p.UsingFallback())
	assert.Equal(t, HashVector("react hooks"), p.Embed(ctx, "react hooks"))
	assert.InDelta(t, 1.0, p.Similarity(ctx, "react hooks", "React Hooks"), 1e-5)
}

func TestProvider_FactoryFailureSwitchesToFallback(t *testing.T) {
	calls := 0
	p := New(func() (Encoder, error) {
		calls++
		return nil, errors.New("model missing")
	})
	ctx := context.Background()

	p.Embed(ctx, "a")
	p.Embed(ctx, "b")

	assert.True(t, p.UsingFallback())
	assert.Equal(t, 1, calls)
}

func TestProvider_InitializesOnceUnderConcurrency(t *testing.T) {
	var built atomic.Int32
	enc := &fakeEncoder{dim: Dimension}
	p := New(func() (Encoder, error) {
		built.Add(1)
		return enc, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Embed(context.Background(), "shared text")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	assert.False(t, p.UsingFallback())
}

func TestProvider_DimensionMismatchDisablesEncoder(t *testing.T) {
	enc := &fakeEncoder{dim: 768}
	p := New(func() (Encoder, error) { return enc, nil })
	ctx := context.Background()

	v := p.Embed(ctx, "text")
	assert.Equal(t, HashVector("text"), v)
	assert.True(t, p.UsingFallback())

	p.Embed(ctx, "other text")
	assert.Equal(t, int32(1), enc.calls.Load())
}

func TestProvider_EncoderErrorFallsBackForWholeBatch(t *testing.T) {
	enc := &fakeEncoder{dim: Dimension, err: errors.New("timeout")}
	p := New(func() (Encoder, error) { return enc, nil })

	scores := p.BatchSimilarity(context.Background(), "react", []string{"react", "python"})

	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores[0], 1e-5)
	assert.False(t, p.UsingFallback())
}

func TestProvider_CachesEncoderVectors(t *testing.T) {
	enc := &fakeEncoder{dim: Dimension}
	p := New(func() (Encoder, error) { return enc, nil })
	ctx := context.Background()

	p.BatchSimilarity(ctx, "query", []string{"a", "b"})
	p.BatchSimilarity(ctx, "query", []string{"a", "b"})

	assert.Equal(t, int32(1), enc.calls.Load())
}

func TestProvider_WhitespaceTextIsUnitNorm(t *testing.T) {
	enc := &fakeEncoder{dim: Dimension}
	ctx := context.Background()

	for _, p := range []*Provider{New(nil), New(func() (Encoder, error) { return enc, nil })} {
		assert.InDelta(t, 1.0, norm(p.Embed(ctx, "   ")), 1e-5)
		assert.Zero(t, norm(p.Embed(ctx, "")))
	}
}

func TestBatchSimilarity(t *testing.T) {
	p := New(nil)
	ctx := context.Background()

	scores := p.BatchSimilarity(ctx, "learn react hooks", []string{
		"react hooks tutorial",
		"python pandas dataframes",
		"",
	})

	require.Len(t, scores, 3)
	assert.Greater(t, scores[0], scores[1])
	assert.Zero(t, scores[2])
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)
	}

	assert.Empty(t, p.BatchSimilarity(ctx, "q", nil))
}

func TestBatchSimilarity_MatchesPairwise(t *testing.T) {
	p := New(nil)
	ctx := context.Background()
	cands := []string{"go channels", "rust ownership", "go generics"}

	batch := p.BatchSimilarity(ctx, "go concurrency", cands)
	for i, c := range cands {
		assert.InDelta(t, p.Similarity(ctx, "go concurrency", c), batch[i], 1e-6)
	}
}

// Package similarity turns text into fixed-length vectors and scores cosine
// similarity between a query and many candidates.
//
// The encoder is built lazily, once, from an injected factory. When it cannot
// be built, or returns vectors of the wrong size, the provider switches to a
// deterministic hashed bag-of-words vector for the rest of its life. Callers
// see the same shape either way.
package similarity

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dimension is the length of every vector the provider returns.
const Dimension = 384

// ErrDimensionMismatch is logged when the encoder returns vectors of the wrong size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Encoder produces embeddings for a batch of texts, in input order.
type Encoder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EncoderFactory builds the encoder on first use.
type EncoderFactory func() (Encoder, error)

// Provider implements Embed / Similarity / BatchSimilarity.
// It is safe for concurrent use.
type Provider struct {
	factory  EncoderFactory
	once     sync.Once
	encoder  Encoder
	disabled atomic.Bool

	cache  *lru.Cache[[32]byte, []float32]
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithCacheSize sets the number of encoder vectors kept in memory.
func WithCacheSize(n int) Option {
	return func(p *Provider) {
		if n <= 0 {
			p.cache = nil
			return
		}
		c, err := lru.New[[32]byte, []float32](n)
		if err == nil {
			p.cache = c
		}
	}
}

// New creates a Provider. A nil factory means fallback vectors only.
func New(factory EncoderFactory, opts ...Option) *Provider {
	p := &Provider{factory: factory, logger: slog.Default()}
	WithCacheSize(10000)(p)
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "similarity")
	return p
}

// UsingFallback reports whether the provider has permanently switched to
// hashed vectors.
func (p *Provider) UsingFallback() bool {
	return p.getEncoder() == nil
}

func (p *Provider) getEncoder() Encoder {
	p.once.Do(func() {
		if p.factory == nil {
			p.disabled.Store(true)
			return
		}
		enc, err := p.factory()
		if err != nil {
			p.logger.Warn("embedding model unavailable, using hashed vectors", "error", err)
			p.disabled.Store(true)
			return
		}
		p.encoder = enc
	})
	if p.disabled.Load() {
		return nil
	}
	return p.encoder
}

// Embed returns a unit-length vector for text, or a zero vector for empty text.
func (p *Provider) Embed(ctx context.Context, text string) []float32 {
	v := p.embedAll(ctx, []string{text})[0]
	return append([]float32(nil), v...)
}

// Similarity returns the cosine similarity of two texts in [-1, 1].
func (p *Provider) Similarity(ctx context.Context, a, b string) float64 {
	return p.BatchSimilarity(ctx, a, []string{b})[0]
}

// BatchSimilarity scores query against every candidate with a single
// matrix-vector product. Empty texts score 0.
func (p *Provider) BatchSimilarity(ctx context.Context, query string, candidates []string) []float64 {
	if len(candidates) == 0 {
		return []float64{}
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	texts = append(texts, candidates...)
	vecs := p.embedAll(ctx, texts)

	matrix := make([]float32, len(candidates)*Dimension)
	for i, v := range vecs[1:] {
		copy(matrix[i*Dimension:(i+1)*Dimension], v)
	}
	return matVec(matrix, vecs[0], len(candidates))
}

// matVec multiplies a row-major rows x Dimension matrix by v. Rows are unit
// or zero vectors, so each product is a cosine similarity.
func matVec(matrix, v []float32, rows int) []float64 {
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		row := matrix[r*Dimension : (r+1)*Dimension]
		var dot float32
		for i, x := range row {
			dot += x * v[i]
		}
		out[r] = clamp(float64(dot))
	}
	return out
}

// embedAll returns one normalized vector per text. All vectors in a call come
// from the same family: if the encoder fails for the batch, every text uses
// the hashed vector.
func (p *Provider) embedAll(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	enc := p.getEncoder()
	if enc == nil {
		for i, t := range texts {
			out[i] = HashVector(t)
		}
		return out
	}

	var (
		missing    []string
		missingIdx []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = HashVector(t)
			continue
		}
		if v, ok := p.cached(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out
	}

	vecs, err := p.encode(ctx, enc, missing)
	if err != nil {
		p.logger.Warn("embedding failed, using hashed vectors", "texts", len(texts), "error", err)
		for i, t := range texts {
			out[i] = HashVector(t)
		}
		return out
	}

	for j, idx := range missingIdx {
		v := normalize(vecs[j])
		out[idx] = v
		if p.cache != nil {
			p.cache.Add(sha256.Sum256([]byte(missing[j])), v)
		}
	}
	return out
}

func (p *Provider) encode(ctx context.Context, enc Encoder, texts []string) ([][]float32, error) {
	vecs, err := enc.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if len(v) != Dimension {
			p.disabled.Store(true)
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), Dimension)
		}
	}
	return vecs, nil
}

func (p *Provider) cached(text string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	return p.cache.Get(sha256.Sum256([]byte(text)))
}

// HashVector is the deterministic fallback embedding: lower-cased alphanumeric
// tokens hashed into Dimension buckets with length-weighted counts, then
// L2-normalized. Only the empty string yields the zero vector; whitespace-only
// text is hashed as is.
func HashVector(text string) []float32 {
	vec := make([]float32, Dimension)
	if text == "" {
		return vec
	}
	if trimmed := strings.TrimSpace(strings.ToLower(text)); trimmed != "" {
		text = trimmed
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		weight := 1 + float32(min(len(tok), 10))/10
		vec[h.Sum32()%Dimension] += weight
	}
	return normalize(vec)
}

// normalize scales v to unit length in place. Zero vectors are returned as is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

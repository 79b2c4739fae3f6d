package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/bam-rec/pkg/models"
)

func TestMemory_GetSetAndExpiry(t *testing.T) {
	m, err := NewMemory(10)
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(100 * time.Hour)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"), time.Hour)
	m.Set(ctx, "b", []byte("2"), time.Hour)
	m.Get(ctx, "a")
	m.Set(ctx, "c", []byte("3"), time.Hour)

	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemory_CopiesValues(t *testing.T) {
	m, _ := NewMemory(2)
	ctx := context.Background()
	buf := []byte("abc")
	m.Set(ctx, "k", buf, time.Hour)
	buf[0] = 'z'

	v, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestBestEffort_OutageIsMiss(t *testing.T) {
	b := NewBestEffort(brokenCache{}, nil)
	ctx := context.Background()

	b.Set(ctx, "k", []byte("v"), time.Minute)
	v, ok := b.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestBestEffort_NilBackend(t *testing.T) {
	b := NewBestEffort(nil, nil)
	b.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := b.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestCodec_RoundTripMarksCached(t *testing.T) {
	in := []models.RecommendationResult{
		{ID: "a", Title: "A", URL: "https://a.dev", Score: 81.5, Engine: "context", Metadata: map[string]any{"reason_source": "template"}},
		{ID: "b", Title: "B", URL: "https://b.dev", Score: 40},
	}

	data, err := EncodeResults(in)
	require.NoError(t, err)

	out, err := DecodeResults(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.True(t, out[i].Cached)
		assert.Equal(t, in[i].Score, out[i].Score)
		assert.Equal(t, in[i].Title, out[i].Title)
		assert.Equal(t, in[i].URL, out[i].URL)
	}
	assert.Equal(t, "template", out[0].Metadata["reason_source"])
}

func TestCodec_Empty(t *testing.T) {
	data, err := EncodeResults([]models.RecommendationResult{})
	require.NoError(t, err)
	out, err := DecodeResults(data)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	_, err = DecodeResults([]byte("not json"))
	assert.Error(t, err)
}

// TestRedis_Integration runs against a local Redis. Skip if unavailable.
func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	r := NewRedis(RedisConfig{Addr: addr, DialTimeout: 500 * time.Millisecond})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		t.Skipf("Redis not available, skipping integration test: %v", err)
	}

	key := "bam-rec-test:" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte("v"), time.Minute))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

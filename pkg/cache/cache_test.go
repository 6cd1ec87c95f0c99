package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

type payload struct {
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	want := payload{Confidence: 0.82, Label: "highly_coordinated"}
	require.NoError(t, c.Set(ctx, NamespaceAnalysis, "a1", want, time.Hour))

	var got payload
	require.NoError(t, c.Get(ctx, NamespaceAnalysis, "a1", &got))
	assert.Equal(t, want, got)
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	var got payload
	err := c.Get(context.Background(), NamespaceAnalysis, "missing", &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, NamespaceEnrichment, "e1", payload{Confidence: 0.5}, time.Second))
	mr.FastForward(2 * time.Second)

	var got payload
	err := c.Get(ctx, NamespaceEnrichment, "e1", &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, NamespaceThreat, "t1", payload{Confidence: 0.3}, time.Hour))
	c.Delete(ctx, NamespaceThreat, "t1")

	var got payload
	err := c.Get(ctx, NamespaceThreat, "t1", &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_WarmBulkWritesAllEntriesInOnePipeline(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	values := map[string]any{
		"w1": payload{Confidence: 0.1},
		"w2": payload{Confidence: 0.2},
		"w3": payload{Confidence: 0.3},
	}
	require.NoError(t, c.WarmBulk(ctx, NamespaceWorkflowState, values, time.Hour))

	for id := range values {
		var got payload
		require.NoError(t, c.Get(ctx, NamespaceWorkflowState, id, &got))
	}
}

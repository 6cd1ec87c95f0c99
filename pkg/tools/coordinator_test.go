package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
)

func TestCoordinator_Run_IsolatesPerAddressFailure(t *testing.T) {
	registry := Registry{
		NameBGPLookup: func(ctx context.Context, addr string) (map[string]any, error) {
			if addr == "1.2.3.5" {
				return nil, errors.New("lookup failed")
			}
			return map[string]any{"asn": "AS100"}, nil
		},
	}

	c := NewCoordinator(registry, 4, nil, 0, 0)
	results := c.Run(context.Background(), []Name{NameBGPLookup}, []string{"1.2.3.4", "1.2.3.5"})

	r, ok := results[string(NameBGPLookup)]
	require.True(t, ok)
	assert.Equal(t, "AS100", r.Data["1.2.3.4"]["asn"])
	assert.Contains(t, r.Data["1.2.3.5"], "error")
}

func TestCoordinator_Run_IsolatesPerToolFailure(t *testing.T) {
	registry := Registry{
		NameBGPLookup: func(ctx context.Context, addr string) (map[string]any, error) {
			return map[string]any{"asn": "AS100"}, nil
		},
	}

	c := NewCoordinator(registry, 4, nil, 0, 0)
	results := c.Run(context.Background(), []Name{NameBGPLookup, NameThreatIntel}, []string{"1.2.3.4"})

	assert.Equal(t, "AS100", results[string(NameBGPLookup)].Data["1.2.3.4"]["asn"])
	assert.Equal(t, "tool not registered", results[string(NameThreatIntel)].Error)
}

func TestCoordinator_Run_AllAddressesCovered(t *testing.T) {
	addrs := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}
	registry := Registry{
		NameGeolocation: func(ctx context.Context, addr string) (map[string]any, error) {
			return map[string]any{"country": "US"}, nil
		},
	}

	c := NewCoordinator(registry, 2, nil, 0, 0)
	results := c.Run(context.Background(), []Name{NameGeolocation}, addrs)

	assert.Len(t, results[string(NameGeolocation)].Data, len(addrs))
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.New(rdb)
}

func TestCoordinator_Run_CachesSuccessfulLookupAcrossCalls(t *testing.T) {
	var calls int
	registry := Registry{
		NameBGPLookup: func(ctx context.Context, addr string) (map[string]any, error) {
			calls++
			return map[string]any{"asn": "AS100"}, nil
		},
	}

	c := NewCoordinator(registry, 4, newTestCache(t), time.Hour, time.Hour)

	first := c.Run(context.Background(), []Name{NameBGPLookup}, []string{"1.2.3.4"})
	assert.Equal(t, "AS100", first[string(NameBGPLookup)].Data["1.2.3.4"]["asn"])
	assert.Equal(t, 1, calls)

	second := c.Run(context.Background(), []Name{NameBGPLookup}, []string{"1.2.3.4"})
	assert.Equal(t, "AS100", second[string(NameBGPLookup)].Data["1.2.3.4"]["asn"])
	assert.Equal(t, 1, calls, "second lookup for the same tool/address should be served from cache")
}

func TestCoordinator_Run_NilCacheAlwaysCallsLive(t *testing.T) {
	var calls int
	registry := Registry{
		NameGeolocation: func(ctx context.Context, addr string) (map[string]any, error) {
			calls++
			return map[string]any{"country": "US"}, nil
		},
	}

	c := NewCoordinator(registry, 4, nil, time.Hour, time.Hour)
	c.Run(context.Background(), []Name{NameGeolocation}, []string{"5.5.5.5"})
	c.Run(context.Background(), []Name{NameGeolocation}, []string{"5.5.5.5"})

	assert.Equal(t, 2, calls)
}

func TestToolSet(t *testing.T) {
	assert.ElementsMatch(t, BaseSet, ToolSet("standard"))
	assert.ElementsMatch(t, DeepSet, ToolSet("deep"))
}

package tools

import (
	"context"
	"sync"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
)

// cachedFields is the JSON envelope a per-(tool,address) lookup is stored
// under, mirroring pkg/llm/operations.go's CachingReasoner.cachedGeneration
// shape.
type cachedFields struct {
	Fields map[string]any `json:"fields"`
}

// namespaceFor returns the cache namespace a tool's lookups are stored
// under (§2/§3: threat intelligence and enrichment lookups are cached
// separately).
func namespaceFor(name Name) cache.Namespace {
	if name == NameThreatIntel {
		return cache.NamespaceThreat
	}
	return cache.NamespaceEnrichment
}

// Coordinator fans each tool's per-address lookups out concurrently,
// bounding total in-flight lookups with a semaphore. Grounded on
// pkg/agent/orchestrator/runner.go's SubAgentRunner slot-reservation
// pattern, simplified: this package has no goroutine lifecycle beyond a
// single Run call, so there is no execution registry or results channel to
// manage, only a bounded fan-out and a WaitGroup join.
type Coordinator struct {
	registry    Registry
	maxInFlight int
	cache       *cache.Cache
	enrichTTL   time.Duration
	threatTTL   time.Duration
}

// NewCoordinator builds a Coordinator over registry, capping the number of
// concurrent HTTP calls (across all tools and addresses) at maxInFlight.
// cacheClient may be nil, in which case every lookup is a live call
// (fail-open, matching pkg/llm.CachingReasoner's nil-safe cache field).
func NewCoordinator(registry Registry, maxInFlight int, cacheClient *cache.Cache, enrichTTL, threatTTL time.Duration) *Coordinator {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Coordinator{
		registry:    registry,
		maxInFlight: maxInFlight,
		cache:       cacheClient,
		enrichTTL:   enrichTTL,
		threatTTL:   threatTTL,
	}
}

// ttlFor returns the configured TTL for namespace ns.
func (c *Coordinator) ttlFor(ns cache.Namespace) time.Duration {
	if ns == cache.NamespaceThreat {
		return c.threatTTL
	}
	return c.enrichTTL
}

// lookup calls fn for (name, addr), first checking the cache and writing
// back a successful result (§2/§3 "per-indicator caching of enrichment/
// threat lookups"). A cache-backend error is treated the same as a miss:
// the call still proceeds, matching the Cache & Rate Layer's fail-open
// contract.
func (c *Coordinator) lookup(ctx context.Context, name Name, fn Func, addr string) (map[string]any, error) {
	ns := namespaceFor(name)
	id := string(name) + ":" + addr

	if c.cache != nil {
		var hit cachedFields
		if err := c.cache.Get(ctx, ns, id, &hit); err == nil {
			return hit.Fields, nil
		}
	}

	fields, err := fn(ctx, addr)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, ns, id, cachedFields{Fields: fields}, c.ttlFor(ns))
	}
	return fields, nil
}

// ToolSet returns the tools to invoke for a given analysis depth (§4.5).
func ToolSet(depth analysis.Depth) []Name {
	if depth == analysis.DepthDeep {
		return DeepSet
	}
	return BaseSet
}

// Run invokes every tool in toolNames against every address in addrs
// concurrently, isolating per-tool, per-address failures into that tool's
// ToolResult.Error/Data entries so one failing tool or address never stops
// the others (§4.5).
func (c *Coordinator) Run(ctx context.Context, toolNames []Name, addrs []string) map[string]analysis.ToolResult {
	results := make(map[string]analysis.ToolResult, len(toolNames))
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, c.maxInFlight)

	for _, name := range toolNames {
		fn, ok := c.registry[name]
		if !ok {
			mu.Lock()
			results[string(name)] = analysis.ToolResult{Error: "tool not registered"}
			mu.Unlock()
			continue
		}

		data := make(map[string]map[string]any, len(addrs))
		var dataMu sync.Mutex

		for _, addr := range addrs {
			wg.Add(1)
			go func(name Name, fn Func, addr string) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				fields, err := c.lookup(ctx, name, fn, addr)
				dataMu.Lock()
				if err != nil {
					data[addr] = map[string]any{"error": err.Error()}
				} else {
					data[addr] = fields
				}
				dataMu.Unlock()
			}(name, fn, addr)
		}

		mu.Lock()
		results[string(name)] = analysis.ToolResult{Data: data}
		mu.Unlock()
	}

	wg.Wait()
	return results
}

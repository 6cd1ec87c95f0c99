// Package tools implements the Tool Coordinator (§4.5): concurrent,
// per-tool, per-address enrichment lookups (bgp_lookup, threat_intel,
// geolocation, asn_analysis) and the synthesis of enrichment_data from
// their combined output.
package tools

import "context"

// Name identifies a single tool in the registry.
type Name string

const (
	NameBGPLookup    Name = "bgp_lookup"
	NameThreatIntel  Name = "threat_intel"
	NameGeolocation  Name = "geolocation"
	NameASNAnalysis  Name = "asn_analysis"
)

// AddressResult is one address's fields from a single tool, or an isolated
// error if that address's lookup failed.
type AddressResult struct {
	Fields map[string]any
	Err    error
}

// Func is the contract every tool implements: given one address, return its
// fields or an error (§4.5 "tool failures are isolated").
type Func func(ctx context.Context, addr string) (map[string]any, error)

// Registry maps tool names to their implementations.
type Registry map[Name]Func

// BaseSet is always invoked for a deep analysis (§4.5).
var BaseSet = []Name{NameBGPLookup, NameThreatIntel, NameGeolocation}

// DeepSet adds asn_analysis when analysis_depth == deep.
var DeepSet = []Name{NameBGPLookup, NameThreatIntel, NameGeolocation, NameASNAnalysis}

package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTool_LookupSendsAddrQueryParam(t *testing.T) {
	var gotAddr, gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr = r.URL.Query().Get("addr")
		gotUserAgent = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]any{"asn": "AS64500", "prefix": "1.2.3.0/24"})
	}))
	defer server.Close()

	tool := newHTTPTool(server.URL, time.Second)
	fields, err := tool.lookup(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", gotAddr)
	assert.Equal(t, "AS64500", fields["asn"])
	assert.Equal(t, version.Full(), gotUserAgent)
}

func TestHTTPTool_LookupNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tool := newHTTPTool(server.URL, time.Second)
	_, err := tool.lookup(context.Background(), "1.2.3.4")
	assert.Error(t, err)
}

func TestNewRegistry_BuildsAllFourTools(t *testing.T) {
	registry := NewRegistry(config.DefaultTools())
	assert.Contains(t, registry, NameBGPLookup)
	assert.Contains(t, registry, NameThreatIntel)
	assert.Contains(t, registry, NameGeolocation)
	assert.Contains(t, registry, NameASNAnalysis)
}

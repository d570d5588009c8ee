package mcp

import (
	"context"
	"net/http"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/revue/pkg/config"
)

func TestCreateTransport_Stdio(t *testing.T) {
	transport, err := createTransport(config.MCPServerConfig{
		Type:    config.TransportTypeStdio,
		Command: "gh-mcp",
		Args:    []string{"--stdio"},
		Env:     map[string]string{"GITHUB_TOKEN": "tok"},
	})
	require.NoError(t, err)
	ct, ok := transport.(*mcpsdk.CommandTransport)
	require.True(t, ok)
	assert.Contains(t, ct.Command.Env, "GITHUB_TOKEN=tok")
}

func TestCreateTransport_StdioRequiresCommand(t *testing.T) {
	_, err := createTransport(config.MCPServerConfig{Type: config.TransportTypeStdio})
	assert.ErrorContains(t, err, "requires command")
}

func TestCreateTransport_HTTP(t *testing.T) {
	transport, err := createTransport(config.MCPServerConfig{
		Type: config.TransportTypeHTTP,
		URL:  "https://mcp.example.com",
	})
	require.NoError(t, err)
	ht, ok := transport.(*mcpsdk.StreamableClientTransport)
	require.True(t, ok)
	assert.Equal(t, "https://mcp.example.com", ht.Endpoint)
	assert.Nil(t, ht.HTTPClient, "no custom client without a token")
}

func TestCreateTransport_HTTPWithBearerToken(t *testing.T) {
	transport, err := createTransport(config.MCPServerConfig{
		Type:        config.TransportTypeHTTP,
		URL:         "https://mcp.example.com",
		BearerToken: "tok",
	})
	require.NoError(t, err)
	ht := transport.(*mcpsdk.StreamableClientTransport)
	require.NotNil(t, ht.HTTPClient)
	_, ok := ht.HTTPClient.Transport.(*bearerTokenTransport)
	assert.True(t, ok)
}

func TestCreateTransport_SSE(t *testing.T) {
	transport, err := createTransport(config.MCPServerConfig{
		Type: config.TransportTypeSSE,
		URL:  "https://mcp.example.com/sse",
	})
	require.NoError(t, err)
	st, ok := transport.(*mcpsdk.SSEClientTransport)
	require.True(t, ok)
	assert.Equal(t, "https://mcp.example.com/sse", st.Endpoint)
}

func TestCreateTransport_UnsupportedType(t *testing.T) {
	_, err := createTransport(config.MCPServerConfig{Type: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported transport type")
}

type recordingRoundTripper struct {
	auth string
}

func (r *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r.auth = req.Header.Get("Authorization")
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestBearerTokenTransport_SetsHeader(t *testing.T) {
	rec := &recordingRoundTripper{}
	tr := &bearerTokenTransport{base: rec, token: "secret"}

	req, err := http.NewRequest(http.MethodGet, "https://mcp.example.com", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "Bearer secret", rec.auth)
	assert.Empty(t, req.Header.Get("Authorization"), "original request not mutated")
}

func TestPreflight_ReportsFailuresPerServer(t *testing.T) {
	results := Preflight(context.Background(), map[string]config.MCPServerConfig{
		"broken": {Type: "carrier-pigeon"},
		"github": {Type: config.TransportTypeStdio, Command: "/nonexistent/gh-mcp"},
	}, nil)

	require.Len(t, results, 2)
	// Sorted by server id.
	assert.Equal(t, "broken", results[0].Server)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Error, "transport")
	assert.Equal(t, "github", results[1].Server)
	assert.False(t, results[1].OK)
}

// Package mcp checks configured MCP servers before a review run:
// connect, list tools, disconnect. A failed check does not block the
// run; it tells the operator which remote tools the agents will miss.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/version"
)

const (
	// InitTimeout bounds one server connect during preflight.
	InitTimeout = 30 * time.Second
	// OperationTimeout bounds the tool listing call.
	OperationTimeout = 10 * time.Second
)

// Result is the preflight outcome for one server.
type Result struct {
	Server string
	OK     bool
	Error  string
	Tools  []string
}

// Preflight connects to every configured server and lists its tools.
// Results are sorted by server id for stable output.
func Preflight(ctx context.Context, servers map[string]config.MCPServerConfig, logger *slog.Logger) []Result {
	if logger == nil {
		logger = slog.Default()
	}
	ids := make([]string, 0, len(servers))
	for id := range servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		r := checkServer(ctx, id, servers[id])
		if r.OK {
			logger.Info("MCP server reachable", "server", id, "tools", len(r.Tools))
		} else {
			logger.Warn("MCP server preflight failed", "server", id, "error", r.Error)
		}
		results = append(results, r)
	}
	return results
}

func checkServer(ctx context.Context, id string, cfg config.MCPServerConfig) Result {
	transport, err := createTransport(cfg)
	if err != nil {
		return Result{Server: id, Error: fmt.Sprintf("failed to create transport: %s", err)}
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	sess, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		// Close the transport if it implements io.Closer so stdio child
		// processes do not leak on failed connects.
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return Result{Server: id, Error: fmt.Sprintf("failed to connect: %s", err)}
	}
	defer sess.Close() //nolint:errcheck

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	listed, err := sess.ListTools(opCtx, nil)
	if err != nil {
		return Result{Server: id, Error: fmt.Sprintf("failed to list tools: %s", err)}
	}

	tools := make([]string, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		tools = append(tools, t.Name)
	}
	sort.Strings(tools)
	return Result{Server: id, OK: true, Tools: tools}
}

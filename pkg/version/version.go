// Package version holds build identity, stamped via -ldflags.
package version

// AppName identifies this binary to MCP servers and in logs.
const AppName = "revue"

// Set at build time:
//
//	go build -ldflags "-X github.com/codeready-toolchain/revue/pkg/version.Version=v0.3.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Package tofile holds build-wide identifiers shared by the tofile commands.
package tofile

// Version is the release version reported by the CLI and the MCP server.
const Version = "v0.1.0"

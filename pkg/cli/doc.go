// Package cli implements the konnect-mcp command line: the MCP server
// itself (serve, also the default command) plus tools and version.
package cli

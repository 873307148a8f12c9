// Package logging builds the structured loggers used across konnect-mcp.
//
// Everything logs through log/slog. Components accept a *slog.Logger via a
// constructor argument or a SetLogger method and fall back to Nop() when none
// is given, so library code never writes to stderr on its own.
//
// The MCP protocol itself never travels over the log stream: the HTTP transport
// keeps stdout and stderr free for operators.
package logging

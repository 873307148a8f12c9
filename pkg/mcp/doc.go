// Package mcp implements a Model Context Protocol (MCP) server that exposes
// the Kong Konnect API as tools.
//
// # Protocol Version
//
// This implementation speaks MCP 2025-06-18 (and accepts 2025-03-26 and
// 2024-11-05 clients) over the Streamable HTTP transport.
//
// # Tools (10 total)
//
// Analytics:
//   - query_api_requests, get_consumer_requests
//
// Configuration:
//   - list_services, list_routes, list_consumers, list_plugins
//
// Control Planes:
//   - list_control_planes, get_control_plane,
//     list_control_plane_group_memberships, check_control_plane_group_membership
//
// Every tool forwards to one konnect.API call. Results are returned as
// two-space indented JSON text; failures come back as error results carrying
// troubleshooting tips rather than as JSON-RPC errors.
//
// # Sessions
//
// A POST of an initialize request without an Mcp-Session-Id header opens a
// session. It is registered as pending, becomes active once the handshake
// succeeds, and is closed by DELETE, idle expiry or shutdown. Requests for
// the same session run one at a time; requests for different sessions run
// concurrently.
//
// # Transport
//
// One path (default /mcp) accepts POST (JSON-RPC messages), GET (SSE
// notification stream) and DELETE (session termination). GET /health reports
// liveness.
//
// # Security
//
// By default the HTTP transport only accepts connections from localhost.
package mcp

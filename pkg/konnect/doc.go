// Package konnect is a small client for the Kong Konnect v2 REST API.
//
// It covers exactly the calls the MCP tools forward to: API request analytics,
// core-entity listing (services, routes, consumers, plugins) under a control
// plane, and control-plane / control-plane-group lookups. Each call takes a
// typed parameter struct and returns a JSON-friendly result, or an error that
// is either an *APIError (non-2xx from Konnect) or a transport error.
//
// Responses are decoded with json.Decoder.UseNumber so that numeric fields are
// passed through without float64 rounding.
package konnect

// Package server hosts the MCP server over its supported transports and
// carries the shared state tool handlers need: the workspace client provider,
// the configured serving endpoint, and the observability hooks.
//
// For the streamable HTTP transport, the delegated access token forwarded by
// the Databricks Apps proxy is bound onto each request's context before the
// MCP handler runs, so tool handlers can resolve per-user credentials without
// any process-global state.
package server

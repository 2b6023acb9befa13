// Package auth propagates the inbound caller's delegated Databricks
// credential through the request context and selects the credential
// strategy the server uses to talk to the workspace.
//
// When the server runs as a Databricks App, the Apps proxy terminates
// OAuth and forwards the end user's access token in the
// X-Forwarded-Access-Token header. This package binds that token into
// the per-request context so tool handlers can act on behalf of the
// caller without threading the token through every signature. The
// binding lives exactly as long as the request context; concurrent
// requests never observe each other's token.
package auth

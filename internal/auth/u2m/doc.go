// Package u2m implements the interactive OAuth user-to-machine flow:
// authorization code with PKCE (RFC 7636) for public clients.
//
// A single authorization attempt generates a fresh code verifier and state
// nonce, opens the user's browser at the authorization endpoint, captures the
// redirect on a short-lived loopback listener, and exchanges the returned
// code for tokens. Attempts are one-shot: a failed or timed-out attempt is
// discarded and a new one must be started from scratch.
//
// Defaults target the Databricks OIDC endpoints, but the authorization and
// token URLs can be overridden for other providers and for tests.
package u2m

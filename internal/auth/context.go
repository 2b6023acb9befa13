package auth

import (
	"context"
	"net/http"
)

// HeaderForwardedAccessToken is the header the Databricks Apps proxy uses to
// forward the end user's OAuth access token to the app. Header lookup is
// case-insensitive per net/http semantics.
const HeaderForwardedAccessToken = "X-Forwarded-Access-Token"

// contextKey is the type for context keys
type contextKey string

// delegatedTokenKey is the key for storing the caller's delegated access
// token in the request context
const delegatedTokenKey contextKey = "delegated_access_token"

// WithDelegatedToken returns a context carrying the caller's delegated access
// token. An empty token is treated as absent and the context is returned
// unchanged.
func WithDelegatedToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, delegatedTokenKey, token)
}

// DelegatedTokenFromContext retrieves the caller's delegated access token
// from the context. It reports false when no token is bound, which is a
// normal condition (the caller decides whether to fall back to the service
// identity or fail).
func DelegatedTokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(delegatedTokenKey).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// HTTPContextFunc binds the forwarded access token, if present, into the
// request context before the MCP server dispatches the request. It matches
// the mcp-go server.HTTPContextFunc signature and is installed via
// server.WithHTTPContextFunc on the streamable HTTP transport.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return WithDelegatedToken(ctx, r.Header.Get(HeaderForwardedAccessToken))
}

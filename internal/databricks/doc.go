// Package databricks wraps the Databricks workspace SDK behind a small
// interface so tool handlers can be tested without a live workspace.
//
// The Factory is the only place that decides which credential backs a call:
// service principal (ambient app identity), delegated (the caller's token
// forwarded by the Apps proxy, carried on the request context), or developer
// (ambient local credentials such as a profile or PAT). The mode is resolved
// once at startup and never re-guessed per request.
package databricks

// Package common provides shared helpers for MCP tool packages, notably the
// instrumented handler wrapper that records metrics and audit entries for
// every tool invocation.
package common

// Package workspace_tools registers MCP tools for workspace identity and
// server health. The get_current_user tool is the canonical probe for
// delegated credentials: in delegated mode it reports the identity of the
// caller whose token was forwarded by the Apps proxy, not the app itself.
package workspace_tools

// Package cmd wires the appbridge CLI: serving the MCP server over stdio or
// streamable HTTP, logging in interactively against a workspace, and querying
// a serving endpoint directly for development.
package cmd

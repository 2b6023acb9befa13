// Package agent_tools registers the ask_agent MCP tool, which forwards a
// prompt to the configured Databricks model serving endpoint using the
// credential resolved for the request.
package agent_tools

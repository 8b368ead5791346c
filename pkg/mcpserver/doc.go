// Package mcpserver exposes the query engine to MCP clients.
//
// Three tools are served over streamable HTTP: deep_query runs the full
// reflective retrieval loop, naive_query does a single retrieval pass,
// and list_collections reports what can be searched.
package mcpserver

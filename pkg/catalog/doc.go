// Package catalog tracks the collections known to the query engine: their
// names, descriptions, and creation times. The router uses descriptions to
// decide which collections a question should search; the HTTP and MCP
// surfaces list them.
//
// Two implementations exist: an in-memory catalog for tests and
// single-process deployments, and a PostgreSQL catalog for durability.
package catalog

// Package services sits between the shells (CLI, HTTP, WebSocket) and the
// matching engine. It loads input tables, resolves column references,
// runs comparisons with tracing and metrics, and stores reports.
package services

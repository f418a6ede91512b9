// Package http exposes the comparison service over HTTP and WebSocket.
//
// Routes mounted by the application:
//
//	POST /api/v1/compare          inline JSON tables, JSON result
//	POST /api/v1/compare/upload   multipart files, XLSX report or JSON
//	GET  /api/v1/compare/ws       streamed progress, then result or error
//	GET  /api/health              liveness
//	GET  /api/version             build information
//
// Errors are answered as RFC 7807 problem details by the shared error handler.
package http

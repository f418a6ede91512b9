// Package app assembles the comparison server: configuration, logging,
// OpenTelemetry, services, the chi router and the HTTP server lifecycle.
package app

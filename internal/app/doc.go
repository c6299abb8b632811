// Package app wires the explorer together: configuration, logging,
// OpenTelemetry, the websocket hub, the pipeline manager and the HTTP router.
//
// Startup order:
//
//  1. resolve and create the data, exports and logs directories
//  2. initialize the logger and OpenTelemetry providers
//  3. build the hub, status broadcaster, pipeline manager and services
//  4. load the configured dataset (a failure only logs a warning)
//  5. mount /ws, /api and /metrics
//
// Run blocks until SIGINT or SIGTERM and then shuts down gracefully.
package app

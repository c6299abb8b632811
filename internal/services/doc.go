// Package services implements the explorer's business layer between the HTTP
// handlers and the dataset, query, reshape and export packages.
//
// ExplorerService owns the loaded dataset and the single explorer session.
// It converts API requests into query criteria and reshape options, runs them
// through the session and converts the results back into API responses.
// HealthService reports liveness and readiness for probes.
//
// Services return domain errors (query.QueryError, reshape.PivotConfigError,
// operations.OperationError) or the sentinels in errors.go; the transport
// layer turns them into problem details.
package services

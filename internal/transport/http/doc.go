// Package http implements the explorer's HTTP handlers. Handlers stay thin:
// they decode and validate requests, call the services package and render
// the result or a problem details response.
//
// # Routes
//
//	GET    /api/dataset                 dataset description
//	GET    /api/uniques?field=&model=   selectable values, narrowed by model
//	GET    /api/presets                 plot presets
//	POST   /api/search                  filter the dataset
//	GET    /api/results?limit=          preview the current search result
//	POST   /api/pivot                   run the reshape pipeline
//	GET    /api/pivot                   last pipeline output
//	DELETE /api/pivot                   cancel the running pipeline
//	GET    /api/session                 session phase
//	DELETE /api/session                 reset the session
//	GET    /api/export/{target}/{format} download results or pivot
//
// Health probes live under /api/health.
package http

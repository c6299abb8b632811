// Package config provides centralized configuration management for the explorer.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Default() values
//	2. A configuration file (config.yaml or config.toml)
//	3. Environment variables (highest priority)
//
// # Environment Variables
//
// All environment variables use the AGMIPX_ prefix followed by the section:
//
//	AGMIPX_SERVER_PORT=8080
//	AGMIPX_DATASET_FILE=/srv/agmip/agmip.csv
//	AGMIPX_DISPLAY_PRECISION=3
//	AGMIPX_LOGGING_LEVEL=debug
//	AGMIPX_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Paths
//
// Relative directories resolve against Paths.RootDir, or the executable's
// directory when no root is configured. Use ResolvePaths and EnsureDirectories
// at startup.
package config

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. AGMIPX_SERVER_PORT
const EnvPrefix = "AGMIPX"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" toml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" toml:"paths" envconfig:"PATHS"`
	Dataset   DatasetConfig   `yaml:"dataset" toml:"dataset" envconfig:"DATASET"`
	Display   DisplayConfig   `yaml:"display" toml:"display" envconfig:"DISPLAY"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string   `yaml:"host" toml:"host" envconfig:"HOST"`
	Port            int      `yaml:"port" toml:"port" envconfig:"PORT"`
	ReadTimeout     Duration `yaml:"read_timeout" toml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    Duration `yaml:"write_timeout" toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     Duration `yaml:"idle_timeout" toml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int      `yaml:"max_header_bytes" toml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// PipelineTimeout bounds one search or pipeline run
	PipelineTimeout Duration `yaml:"pipeline_timeout" toml:"pipeline_timeout" envconfig:"PIPELINE_TIMEOUT"`
}

// SecurityConfig contains request limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" toml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	MaxBodyBytes   int64           `yaml:"max_body_bytes" toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" toml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" toml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" toml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" toml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" toml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" toml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" toml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system locations. Relative directories resolve against RootDir,
// which defaults to the executable's directory.
type PathsConfig struct {
	RootDir    string `yaml:"root_dir" toml:"root_dir" envconfig:"ROOT_DIR"`
	DataDir    string `yaml:"data_dir" toml:"data_dir" envconfig:"DATA_DIR"`
	ExportsDir string `yaml:"exports_dir" toml:"exports_dir" envconfig:"EXPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" toml:"logs_dir" envconfig:"LOGS_DIR"`
}

// DatasetConfig locates the projection dataset
type DatasetConfig struct {
	// File is a CSV or XLSX file; relative paths resolve against the data directory
	File string `yaml:"file" toml:"file" envconfig:"FILE"`
	// UseCache reads and writes the uniques index next to the dataset
	UseCache bool `yaml:"use_cache" toml:"use_cache" envconfig:"USE_CACHE"`
}

// DisplayConfig holds presentation defaults handed to exporters and previews
type DisplayConfig struct {
	Precision    int    `yaml:"precision" toml:"precision" envconfig:"PRECISION"`
	ResultLimit  int    `yaml:"result_limit" toml:"result_limit" envconfig:"RESULT_LIMIT"`
	CSVBOM       bool   `yaml:"csv_bom" toml:"csv_bom" envconfig:"CSV_BOM"`
	DownloadName string `yaml:"download_name" toml:"download_name" envconfig:"DOWNLOAD_NAME"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" toml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" toml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" toml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" toml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" toml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int      `yaml:"read_buffer_size" toml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int      `yaml:"write_buffer_size" toml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      Duration `yaml:"ping_period" toml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        Duration `yaml:"pong_wait" toml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, then the config file (if any), then
// AGMIPX_* environment variables. An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile decodes a YAML or TOML file over cfg; keys absent from the file keep their value
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
}

// findConfigFile returns the first config file found in the usual locations
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"config.yml",
		"config.toml",
		"configs/config.yaml",
		"configs/config.toml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks the configuration and normalizes a few values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout.Duration <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout.Duration <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}
	if strings.TrimSpace(c.Dataset.File) == "" {
		return fmt.Errorf("dataset file must be specified")
	}
	if c.Display.Precision < 0 || c.Display.Precision > 15 {
		return fmt.Errorf("display precision must be between 0 and 15, got %d", c.Display.Precision)
	}
	if c.Display.ResultLimit < 0 {
		return fmt.Errorf("display result limit cannot be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be between 0 and 1")
	}

	// JSON logs only
	c.Logging.Format = "json"
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: Duration{30 * time.Second},
			PipelineTimeout: Duration{2 * time.Minute},
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			MaxBodyBytes:   1 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/agmipx.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ExportsDir: "exports",
			LogsDir:    "logs",
		},
		Dataset: DatasetConfig{
			File:     "agmip.csv",
			UseCache: true,
		},
		Display: DisplayConfig{
			Precision:    2,
			ResultLimit:  25,
			CSVBOM:       false,
			DownloadName: "AgMIP_Explorer_Data",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "agmipx",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      Duration{30 * time.Second},
			PongWait:        Duration{60 * time.Second},
		},
	}
}

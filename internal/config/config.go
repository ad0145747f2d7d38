package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. MFL_SERVER_PORT.
const EnvPrefix = "MFL"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Fetch     FetchConfig     `yaml:"fetch" envconfig:"FETCH"`
	Update    UpdateConfig    `yaml:"update" envconfig:"UPDATE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	SyncTimeout     time.Duration `yaml:"sync_timeout" envconfig:"SYNC_TIMEOUT" default:"30m"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/mfledger.log"`
}

// PathsConfig contains file system paths configuration. Relative entries resolve
// against Root, which defaults to the executable directory.
type PathsConfig struct {
	Root       string `yaml:"root" envconfig:"ROOT"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LedgersDir string `yaml:"ledgers_dir" envconfig:"LEDGERS_DIR" default:"data/ledgers"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR" default:"data/exports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	Journal    string `yaml:"journal" envconfig:"JOURNAL" default:"data/journal.db"`
	FundsFile  string `yaml:"funds_file" envconfig:"FUNDS_FILE"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// FetchConfig bounds every outbound call made while locating documents.
type FetchConfig struct {
	UserAgent       string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	HeadTimeout     time.Duration `yaml:"head_timeout" envconfig:"HEAD_TIMEOUT" default:"3s"`
	IndexTimeout    time.Duration `yaml:"index_timeout" envconfig:"INDEX_TIMEOUT" default:"10s"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"30s"`
	MaxDocumentSize int64         `yaml:"max_document_size" envconfig:"MAX_DOCUMENT_SIZE" default:"52428800"`
	RPS             float64       `yaml:"rps" envconfig:"RPS" default:"2"`
	Burst           int           `yaml:"burst" envconfig:"BURST" default:"4"`
	BrowserEnabled  bool          `yaml:"browser_enabled" envconfig:"BROWSER_ENABLED" default:"false"`
	BrowserTimeout  time.Duration `yaml:"browser_timeout" envconfig:"BROWSER_TIMEOUT" default:"45s"`
}

// UpdateConfig controls the update runner.
type UpdateConfig struct {
	Year            int `yaml:"year" envconfig:"YEAR"`
	FundConcurrency int `yaml:"fund_concurrency" envconfig:"FUND_CONCURRENCY" default:"3"`
}

// TelemetryConfig toggles OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file; an empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		mergeConfigs(*fileConfig, &cfg)
	}

	if cfg.Update.Year == 0 {
		cfg.Update.Year = time.Now().Year()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// overlay copies a non-zero file value unless the variable was set explicitly in
// the environment.
func overlay[T comparable](dst *T, fileVal T, envKey string) {
	var zero T
	if fileVal == zero {
		return
	}
	if _, set := os.LookupEnv(EnvPrefix + "_" + envKey); set {
		return
	}
	*dst = fileVal
}

// mergeConfigs merges file config into env config (env takes precedence)
func mergeConfigs(file Config, cfg *Config) {
	overlay(&cfg.Server.Port, file.Server.Port, "SERVER_PORT")
	overlay(&cfg.Server.ReadTimeout, file.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	overlay(&cfg.Server.WriteTimeout, file.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	overlay(&cfg.Server.IdleTimeout, file.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	overlay(&cfg.Server.ShutdownTimeout, file.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	overlay(&cfg.Server.SyncTimeout, file.Server.SyncTimeout, "SERVER_SYNC_TIMEOUT")

	overlay(&cfg.Logging.Level, file.Logging.Level, "LOGGING_LEVEL")
	overlay(&cfg.Logging.Format, file.Logging.Format, "LOGGING_FORMAT")
	overlay(&cfg.Logging.Output, file.Logging.Output, "LOGGING_OUTPUT")
	overlay(&cfg.Logging.FilePath, file.Logging.FilePath, "LOGGING_FILE_PATH")

	overlay(&cfg.Paths.Root, file.Paths.Root, "PATHS_ROOT")
	overlay(&cfg.Paths.DataDir, file.Paths.DataDir, "PATHS_DATA_DIR")
	overlay(&cfg.Paths.LedgersDir, file.Paths.LedgersDir, "PATHS_LEDGERS_DIR")
	overlay(&cfg.Paths.ExportsDir, file.Paths.ExportsDir, "PATHS_EXPORTS_DIR")
	overlay(&cfg.Paths.LogsDir, file.Paths.LogsDir, "PATHS_LOGS_DIR")
	overlay(&cfg.Paths.Journal, file.Paths.Journal, "PATHS_JOURNAL")
	overlay(&cfg.Paths.FundsFile, file.Paths.FundsFile, "PATHS_FUNDS_FILE")

	overlay(&cfg.WebSocket.ReadBufferSize, file.WebSocket.ReadBufferSize, "WEBSOCKET_READ_BUFFER_SIZE")
	overlay(&cfg.WebSocket.WriteBufferSize, file.WebSocket.WriteBufferSize, "WEBSOCKET_WRITE_BUFFER_SIZE")
	overlay(&cfg.WebSocket.PingPeriod, file.WebSocket.PingPeriod, "WEBSOCKET_PING_PERIOD")
	overlay(&cfg.WebSocket.PongWait, file.WebSocket.PongWait, "WEBSOCKET_PONG_WAIT")

	overlay(&cfg.Fetch.UserAgent, file.Fetch.UserAgent, "FETCH_USER_AGENT")
	overlay(&cfg.Fetch.HeadTimeout, file.Fetch.HeadTimeout, "FETCH_HEAD_TIMEOUT")
	overlay(&cfg.Fetch.IndexTimeout, file.Fetch.IndexTimeout, "FETCH_INDEX_TIMEOUT")
	overlay(&cfg.Fetch.DownloadTimeout, file.Fetch.DownloadTimeout, "FETCH_DOWNLOAD_TIMEOUT")
	overlay(&cfg.Fetch.MaxDocumentSize, file.Fetch.MaxDocumentSize, "FETCH_MAX_DOCUMENT_SIZE")
	overlay(&cfg.Fetch.RPS, file.Fetch.RPS, "FETCH_RPS")
	overlay(&cfg.Fetch.Burst, file.Fetch.Burst, "FETCH_BURST")
	overlay(&cfg.Fetch.BrowserEnabled, file.Fetch.BrowserEnabled, "FETCH_BROWSER_ENABLED")
	overlay(&cfg.Fetch.BrowserTimeout, file.Fetch.BrowserTimeout, "FETCH_BROWSER_TIMEOUT")

	overlay(&cfg.Update.Year, file.Update.Year, "UPDATE_YEAR")
	overlay(&cfg.Update.FundConcurrency, file.Update.FundConcurrency, "UPDATE_FUND_CONCURRENCY")

	overlay(&cfg.Telemetry.Environment, file.Telemetry.Environment, "TELEMETRY_ENVIRONMENT")
	overlay(&cfg.Telemetry.TraceExporter, file.Telemetry.TraceExporter, "TELEMETRY_TRACE_EXPORTER")
	overlay(&cfg.Telemetry.MetricExporter, file.Telemetry.MetricExporter, "TELEMETRY_METRIC_EXPORTER")
	overlay(&cfg.Telemetry.SampleRatio, file.Telemetry.SampleRatio, "TELEMETRY_SAMPLE_RATIO")
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Fetch.HeadTimeout <= 0 || c.Fetch.IndexTimeout <= 0 || c.Fetch.DownloadTimeout <= 0 {
		return fmt.Errorf("fetch timeouts must be positive")
	}

	if c.Fetch.RPS <= 0 || c.Fetch.Burst <= 0 {
		return fmt.Errorf("fetch rate limit must be positive (rps=%v burst=%d)", c.Fetch.RPS, c.Fetch.Burst)
	}

	if c.Update.FundConcurrency < 1 {
		c.Update.FundConcurrency = 1
	}

	c.Logging.Format = "json"

	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "file", "both":
	default:
		c.Logging.Output = "stdout"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/mfledger.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

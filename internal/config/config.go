package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Edgar    EdgarConfig    `yaml:"edgar" envconfig:"EDGAR"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// RequestTimeout bounds each caller-facing operation, including a
	// full resolve/fetch/parse pipeline on a cache miss.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"90s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// EdgarConfig contains settings for the SEC EDGAR client and the
// holdings pipeline built on it.
type EdgarConfig struct {
	// SubmissionsURL serves the per-registrant filing index JSON.
	SubmissionsURL string `yaml:"submissions_url" envconfig:"SUBMISSIONS_URL" default:"https://data.sec.gov"`
	// ArchivesURL serves filed documents.
	ArchivesURL string `yaml:"archives_url" envconfig:"ARCHIVES_URL" default:"https://www.sec.gov"`
	// UserAgent identifies this deployment to the SEC. EDGAR requires a
	// contact-style value; there is no usable default, so an empty value
	// fails validation at startup.
	UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT"`
	// RPS is the outbound request ceiling shared by all callers. The SEC
	// fair-access policy allows at most 10 requests per second.
	RPS            float64       `yaml:"rps" envconfig:"RPS" default:"10"`
	MaxRetries     int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"30s"`
	CacheTTL       time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"24h"`
	// RegistryPath optionally replaces the embedded fund registry.
	RegistryPath string `yaml:"registry_path" envconfig:"REGISTRY_PATH"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	configFile := os.Getenv("ETFO_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	if err := envconfig.Process("ETFO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
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

// validate checks configuration invariants that cannot be expressed as
// struct tag defaults.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Edgar.UserAgent == "" {
		return fmt.Errorf("edgar user_agent is required: set ETFO_EDGAR_USER_AGENT to a contact-style value, e.g. %q", "etf-overlap/1.0 (ops@example.com)")
	}
	if c.Edgar.RPS <= 0 {
		return fmt.Errorf("edgar rps must be positive, got %v", c.Edgar.RPS)
	}
	if c.Edgar.RPS > 10 {
		return fmt.Errorf("edgar rps %v exceeds the SEC fair-access ceiling of 10", c.Edgar.RPS)
	}
	if c.Edgar.MaxRetries < 0 {
		return fmt.Errorf("edgar max_retries must be non-negative, got %d", c.Edgar.MaxRetries)
	}
	if c.Edgar.CacheTTL <= 0 {
		return fmt.Errorf("edgar cache_ttl must be positive, got %v", c.Edgar.CacheTTL)
	}
	return nil
}

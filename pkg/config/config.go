// Package config loads the process configuration from defaults, an optional
// config file, an optional .env file, environment variables and flags.
package config

import "time"

// Router adapter names accepted by router_type.
const (
	RouterNetHTTP = "nethttp"
	RouterGorilla = "gorilla"
	RouterGin     = "gin"
)

// Config is the root configuration. It is built once at startup and shared
// read-only by pointer.
type Config struct {
	RouterType    string              `mapstructure:"router_type" yaml:"router_type"`
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Management    ManagementConfig    `mapstructure:"management" yaml:"management"`
	CORS          CORSConfig          `mapstructure:"cors" yaml:"cors"`
	Compression   CompressionConfig   `mapstructure:"compression" yaml:"compression"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HTTPConfig configures the public server.
type HTTPConfig struct {
	Port           int           `mapstructure:"port" yaml:"port"`
	StaticDir      string        `mapstructure:"static_dir" yaml:"static_dir"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size" yaml:"max_request_size"`
	// DrainTimeout bounds graceful shutdown. Zero waits for every in-flight request.
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// ManagementConfig configures the optional management server.
type ManagementConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// CORSConfig configures the CORS layer.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	AllowAllOrigins  bool          `mapstructure:"allow_all_origins" yaml:"allow_all_origins"`
	AllowOrigins     []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods" yaml:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers" yaml:"allow_headers"`
	ExposeHeaders    []string      `mapstructure:"expose_headers" yaml:"expose_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// CompressionConfig configures the response compression layer.
type CompressionConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	EnableGzip   bool `mapstructure:"gzip" yaml:"gzip"`
	EnableBrotli bool `mapstructure:"brotli" yaml:"brotli"`
	MinSize      int  `mapstructure:"min_size" yaml:"min_size"`
}

// RateLimitConfig configures the per-client limiter on the API routes.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
	// TrustForwardedFor keys clients by X-Forwarded-For. Only enable behind a proxy that sets it.
	TrustForwardedFor bool `mapstructure:"trust_forwarded_for" yaml:"trust_forwarded_for"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel          string               `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string               `mapstructure:"log_format" yaml:"log_format"`
	TracingEnabled    bool                 `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string               `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64              `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	RequestLogging    RequestLoggingConfig `mapstructure:"request_logging" yaml:"request_logging"`
}

// RequestLoggingConfig configures the request logging layer.
type RequestLoggingConfig struct {
	Enabled              bool     `mapstructure:"enabled" yaml:"enabled"`
	LogStart             bool     `mapstructure:"log_start" yaml:"log_start"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes" yaml:"excluded_path_prefixes"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		RouterType: RouterNetHTTP,
		Service: ServiceConfig{
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:           3000,
			StaticDir:      "./public",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxRequestSize: 2 << 20,
		},
		Management: ManagementConfig{
			Enabled: false,
			Port:    9090,
		},
		CORS: CORSConfig{
			Enabled:         true,
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			ExposeHeaders:   []string{"X-Request-ID"},
			MaxAge:          12 * time.Hour,
		},
		Compression: CompressionConfig{
			Enabled:      true,
			EnableGzip:   true,
			EnableBrotli: true,
			MinSize:      0,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "debug",
			LogFormat:         "json",
			TracingEnabled:    false,
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
			RequestLogging: RequestLoggingConfig{
				Enabled:  true,
				LogStart: true,
			},
		},
	}
}

// Address returns the listen address for the public server.
func (c HTTPConfig) Address() string {
	return listenAddress(c.Port)
}

// Address returns the listen address for the management server.
func (c ManagementConfig) Address() string {
	return listenAddress(c.Port)
}

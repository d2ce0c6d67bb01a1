package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimburion/devserver/pkg/observability/logger"
)

// DefaultDotEnvFile is read from the working directory when present.
const DefaultDotEnvFile = ".env"

// envBinding maps a config key to the environment variables that set it, in priority order.
type envBinding struct {
	key  string
	envs []string
}

var envBindings = []envBinding{
	{"router_type", []string{"ROUTER_TYPE"}},
	{"service.environment", []string{"ENVIRONMENT"}},

	{"http.port", []string{"PORT"}},
	{"http.static_dir", []string{"STATIC_DIR"}},
	{"http.read_timeout", []string{"HTTP_READ_TIMEOUT"}},
	{"http.write_timeout", []string{"HTTP_WRITE_TIMEOUT"}},
	{"http.idle_timeout", []string{"HTTP_IDLE_TIMEOUT"}},
	{"http.max_request_size", []string{"MAX_REQUEST_SIZE"}},
	{"http.drain_timeout", []string{"DRAIN_TIMEOUT"}},

	{"management.enabled", []string{"MANAGEMENT_ENABLED"}},
	{"management.port", []string{"MANAGEMENT_PORT"}},

	{"cors.enabled", []string{"CORS_ENABLED"}},
	{"cors.allow_all_origins", []string{"CORS_ALLOW_ALL_ORIGINS"}},
	{"cors.allow_origins", []string{"CORS_ALLOW_ORIGINS"}},
	{"cors.allow_methods", []string{"CORS_ALLOW_METHODS"}},
	{"cors.allow_headers", []string{"CORS_ALLOW_HEADERS"}},
	{"cors.expose_headers", []string{"CORS_EXPOSE_HEADERS"}},
	{"cors.allow_credentials", []string{"CORS_ALLOW_CREDENTIALS"}},
	{"cors.max_age", []string{"CORS_MAX_AGE"}},

	{"compression.enabled", []string{"COMPRESSION_ENABLED"}},
	{"compression.gzip", []string{"COMPRESSION_GZIP"}},
	{"compression.brotli", []string{"COMPRESSION_BROTLI"}},
	{"compression.min_size", []string{"COMPRESSION_MIN_SIZE"}},

	{"rate_limit.enabled", []string{"RATE_LIMIT_ENABLED"}},
	{"rate_limit.requests_per_second", []string{"RATE_LIMIT_RPS"}},
	{"rate_limit.burst", []string{"RATE_LIMIT_BURST"}},
	{"rate_limit.trust_forwarded_for", []string{"RATE_LIMIT_TRUST_FORWARDED_FOR"}},

	{"observability.log_level", []string{"LOG_LEVEL"}},
	{"observability.log_format", []string{"LOG_FORMAT"}},
	{"observability.tracing_enabled", []string{"TRACING_ENABLED"}},
	{"observability.tracing_endpoint", []string{"TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}},
	{"observability.tracing_sample_rate", []string{"TRACING_SAMPLE_RATE"}},
	{"observability.request_logging.enabled", []string{"REQUEST_LOGGING_ENABLED"}},
	{"observability.request_logging.log_start", []string{"REQUEST_LOGGING_LOG_START"}},
	{"observability.request_logging.excluded_path_prefixes", []string{"REQUEST_LOGGING_EXCLUDED_PATH_PREFIXES"}},
}

// flagBindings maps CLI flag names to config keys.
var flagBindings = map[string]string{
	"port":        "http.port",
	"static-dir":  "http.static_dir",
	"environment": "service.environment",
	"log-level":   "observability.log_level",
	"log-format":  "observability.log_format",
	"router-type": "router_type",
}

// Loader defines the interface for loading configuration.
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper.
// Precedence, highest first: flags, environment, .env file, config file, defaults.
type ViperLoader struct {
	configFile string
	dotEnvFile string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a ViperLoader. configFile is optional; when set it must exist.
func NewViperLoader(configFile string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		dotEnvFile: DefaultDotEnvFile,
	}
}

// WithDotEnvFile changes the .env path. An empty path disables .env loading.
func (l *ViperLoader) WithDotEnvFile(path string) *ViperLoader {
	l.dotEnvFile = path
	return l
}

// WithFlags binds the known flags of fs as the highest-priority source.
func (l *ViperLoader) WithFlags(fs *pflag.FlagSet) *ViperLoader {
	l.flags = fs
	return l
}

// ConfigFile returns the path to the config file, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// Load builds and validates the configuration.
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	if err := l.mergeDotEnv(v); err != nil {
		return nil, err
	}

	for _, b := range envBindings {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", b.key, err)
		}
	}

	if l.flags != nil {
		for name, key := range flagBindings {
			if flag := l.flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// mergeDotEnv reads the .env file and merges the variables it names into the
// config layer, so that real environment variables still win.
func (l *ViperLoader) mergeDotEnv(v *viper.Viper) error {
	if l.dotEnvFile == "" {
		return nil
	}
	if _, err := os.Stat(l.dotEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", l.dotEnvFile, err)
	}

	dotenv := viper.New()
	dotenv.SetConfigFile(l.dotEnvFile)
	dotenv.SetConfigType("env")
	if err := dotenv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", l.dotEnvFile, err)
	}

	values := make(map[string]interface{})
	for _, b := range envBindings {
		for _, env := range b.envs {
			// viper lowercases keys read from env files
			if !dotenv.IsSet(strings.ToLower(env)) {
				continue
			}
			setNested(values, b.key, dotenv.GetString(strings.ToLower(env)))
			break
		}
	}
	return v.MergeConfigMap(values)
}

func setNested(m map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := m[part].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			m[part] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("router_type", cfg.RouterType)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.static_dir", cfg.HTTP.StaticDir)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.drain_timeout", cfg.HTTP.DrainTimeout)

	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)

	v.SetDefault("cors.enabled", cfg.CORS.Enabled)
	v.SetDefault("cors.allow_all_origins", cfg.CORS.AllowAllOrigins)
	v.SetDefault("cors.allow_origins", cfg.CORS.AllowOrigins)
	v.SetDefault("cors.allow_methods", cfg.CORS.AllowMethods)
	v.SetDefault("cors.allow_headers", cfg.CORS.AllowHeaders)
	v.SetDefault("cors.expose_headers", cfg.CORS.ExposeHeaders)
	v.SetDefault("cors.allow_credentials", cfg.CORS.AllowCredentials)
	v.SetDefault("cors.max_age", cfg.CORS.MaxAge)

	v.SetDefault("compression.enabled", cfg.Compression.Enabled)
	v.SetDefault("compression.gzip", cfg.Compression.EnableGzip)
	v.SetDefault("compression.brotli", cfg.Compression.EnableBrotli)
	v.SetDefault("compression.min_size", cfg.Compression.MinSize)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("rate_limit.trust_forwarded_for", cfg.RateLimit.TrustForwardedFor)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.request_logging.enabled", cfg.Observability.RequestLogging.Enabled)
	v.SetDefault("observability.request_logging.log_start", cfg.Observability.RequestLogging.LogStart)
	v.SetDefault("observability.request_logging.excluded_path_prefixes", cfg.Observability.RequestLogging.ExcludedPathPrefixes)
}

// Validate validates the configuration and returns every problem found.
func (l *ViperLoader) Validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	c.RouterType = strings.ToLower(strings.TrimSpace(c.RouterType))
	switch c.RouterType {
	case RouterNetHTTP, RouterGorilla, RouterGin:
	default:
		errs = append(errs, fmt.Errorf("invalid router_type: %q (must be one of: %s, %s, %s)",
			c.RouterType, RouterNetHTTP, RouterGorilla, RouterGin))
	}

	if !validPort(c.HTTP.Port) {
		errs = append(errs, fmt.Errorf("http.port must be between 0 and 65535, got %d", c.HTTP.Port))
	}
	if strings.TrimSpace(c.HTTP.StaticDir) == "" {
		errs = append(errs, errors.New("http.static_dir is required"))
	}
	if c.HTTP.MaxRequestSize < 0 {
		errs = append(errs, fmt.Errorf("http.max_request_size must not be negative, got %d", c.HTTP.MaxRequestSize))
	}
	if c.HTTP.DrainTimeout < 0 {
		errs = append(errs, fmt.Errorf("http.drain_timeout must not be negative, got %s", c.HTTP.DrainTimeout))
	}
	for name, d := range map[string]int64{
		"http.read_timeout":  int64(c.HTTP.ReadTimeout),
		"http.write_timeout": int64(c.HTTP.WriteTimeout),
		"http.idle_timeout":  int64(c.HTTP.IdleTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if c.Management.Enabled {
		if !validPort(c.Management.Port) {
			errs = append(errs, fmt.Errorf("management.port must be between 0 and 65535, got %d", c.Management.Port))
		} else if c.Management.Port != 0 && c.Management.Port == c.HTTP.Port {
			errs = append(errs, fmt.Errorf("management.port must differ from http.port (%d)", c.HTTP.Port))
		}
	}

	if _, err := logger.ParseLogFormat(c.Observability.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("observability.log_format: %w", err))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second and rate_limit.burst must be positive when enabled, got %d and %d",
			c.RateLimit.RequestsPerSecond, c.RateLimit.Burst))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1, got %v", c.Observability.TracingSampleRate))
	}
	if c.Observability.TracingEnabled && strings.TrimSpace(c.Observability.TracingEndpoint) == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if c.Compression.MinSize < 0 {
		errs = append(errs, fmt.Errorf("compression.min_size must not be negative, got %d", c.Compression.MinSize))
	}

	c.CORS.AllowOrigins = normalizeStringSlice(c.CORS.AllowOrigins)
	if c.CORS.AllowCredentials && c.CORS.AllowAllOrigins {
		errs = append(errs, errors.New("cors.allow_credentials cannot be combined with cors.allow_all_origins"))
	}

	return errors.Join(errs...)
}

func validPort(port int) bool {
	return port >= 0 && port <= 65535
}

func listenAddress(port int) string {
	return ":" + strconv.Itoa(port)
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

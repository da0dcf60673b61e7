package config

import (
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type DiscoveryConfig struct {
	Host                string            `mapstructure:"host"`
	PortRangeStart      int               `mapstructure:"port_range_start"`
	PortRangeEnd        int               `mapstructure:"port_range_end"`
	ExtraPorts          []int             `mapstructure:"extra_ports"`
	Interval            string            `mapstructure:"interval"`
	ProbeTimeout        string            `mapstructure:"probe_timeout"`
	MaxConcurrentProbes int               `mapstructure:"max_concurrent_probes"`
	KnownServices       map[string]string `mapstructure:"known_services"`
	APIRangeStart       int               `mapstructure:"api_range_start"`
	APIRangeEnd         int               `mapstructure:"api_range_end"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
	Path     string `mapstructure:"path"`
}

type ProxyConfig struct {
	UpstreamTimeout string `mapstructure:"upstream_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RouteConfig struct {
	Path        string `mapstructure:"path"`
	Service     string `mapstructure:"service"`
	URL         string `mapstructure:"url"`
	Priority    int    `mapstructure:"priority"`
	Description string `mapstructure:"description"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Routes      []RouteConfig     `mapstructure:"routes"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":4000")
	viper.SetDefault("discovery.host", "127.0.0.1")
	viper.SetDefault("discovery.port_range_start", 3000)
	viper.SetDefault("discovery.port_range_end", 3010)
	viper.SetDefault("discovery.interval", "30s")
	viper.SetDefault("discovery.probe_timeout", "1s")
	viper.SetDefault("discovery.max_concurrent_probes", 64)
	viper.SetDefault("health_check.interval", "30s")
	viper.SetDefault("health_check.timeout", "2s")
	viper.SetDefault("health_check.path", "/health")
	viper.SetDefault("proxy.upstream_timeout", "30s")
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// PortNames converts the known_services table from string-keyed YAML form to
// the port-keyed table the classifier wants. Keys that are not port numbers
// are dropped; validation rejects them before this is ever called.
func (c *Config) PortNames() map[int]string {
	names := make(map[int]string, len(c.Discovery.KnownServices))
	for portStr, name := range c.Discovery.KnownServices {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		names[port] = name
	}

	return names
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Discovery,
			validation.Required,
			validation.By(validateDiscoveryConfig),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Path,
						validation.Required,
						validation.By(validatePath),
					),
				)
			}),
		),
		validation.Field(&c.Proxy,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.UpstreamTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRouteConfig)),
		),
	)
}

func validateDiscoveryConfig(value interface{}) error {
	dc, ok := value.(DiscoveryConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a DiscoveryConfig")
	}

	if err := validation.ValidateStruct(&dc,
		validation.Field(&dc.Host, validation.Required),
		validation.Field(&dc.PortRangeStart, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&dc.PortRangeEnd, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&dc.Interval, validation.Required, validation.By(validateDuration)),
		validation.Field(&dc.ProbeTimeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&dc.MaxConcurrentProbes, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}

	if dc.PortRangeStart > dc.PortRangeEnd {
		return validation.NewError("validation_invalid_range", "port_range_start must not exceed port_range_end")
	}

	for _, port := range dc.ExtraPorts {
		if port < 1 || port > 65535 {
			return validation.NewError("validation_invalid_port", "extra ports must be between 1 and 65535")
		}
	}

	for portStr := range dc.KnownServices {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return validation.NewError("validation_invalid_port", "known_services keys must be port numbers")
		}
	}

	if dc.APIRangeStart > 0 && dc.APIRangeStart > dc.APIRangeEnd {
		return validation.NewError("validation_invalid_range", "api_range_start must not exceed api_range_end")
	}

	return nil
}

func validateRouteConfig(value interface{}) error {
	route, ok := value.(RouteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RouteConfig")
	}

	if err := validation.ValidateStruct(&route,
		validation.Field(&route.Path, validation.Required, validation.By(validatePath)),
		validation.Field(&route.Priority, validation.Min(0)),
	); err != nil {
		return err
	}

	hasService := route.Service != ""
	hasURL := route.URL != ""

	if hasService == hasURL {
		return validation.NewError("validation_invalid_target", "route must set exactly one of service and url")
	}

	if hasURL {
		return validateServerURL(route.URL)
	}

	return nil
}

func validatePath(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_invalid_path", "path must start with /")
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

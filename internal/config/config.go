// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every service setting.
type Config struct {
	SocketPath      string        `yaml:"socket_path"`
	SocketMode      FileMode      `yaml:"socket_mode"`
	MmdbPath        string        `yaml:"mmdb_path"`
	WatchMmdb       bool          `yaml:"watch_mmdb"`
	FlagsPath       string        `yaml:"flags_path"`
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	Resolver        string        `yaml:"resolver"`
	Nameservers     []string      `yaml:"nameservers"`
	ResolveCommand  string        `yaml:"resolve_command"`
	ResolveTimeout  time.Duration `yaml:"resolve_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxRequestBytes int           `yaml:"max_request_bytes"`
	MaxConnections  int           `yaml:"max_connections"`
	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	LogLevel        string        `yaml:"log_level"`
}

// FileMode is an octal permission string such as "0666" in YAML.
type FileMode os.FileMode

// UnmarshalYAML parses an octal mode.
func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	mode, err := parseMode(value.Value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func parseMode(s string) (FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	return FileMode(v), nil
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		SocketPath:      "/tmp/whatcountry.sock",
		SocketMode:      0o666,
		WatchMmdb:       true,
		Resolver:        "dns",
		ResolveTimeout:  5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxRequestBytes: 8 << 10,
		MaxConnections:  64,
		CacheSize:       1024,
		CacheTTL:        time.Minute,
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_PATH when set, and environment variables, in that order.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SOCKET_PATH", &c.SocketPath)
	str("MMDB_PATH", &c.MmdbPath)
	str("FLAGS_PATH", &c.FlagsPath)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("RESOLVER", &c.Resolver)
	str("RESOLVE_COMMAND", &c.ResolveCommand)
	str("LOG_LEVEL", &c.LogLevel)

	if v := getenv("NAMESERVERS"); v != "" {
		c.Nameservers = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	var errs []error
	if v := getenv("SOCKET_MODE"); v != "" {
		mode, err := parseMode(v)
		errs = append(errs, wrapEnv("SOCKET_MODE", err))
		if err == nil {
			c.SocketMode = mode
		}
	}
	if v := getenv("WATCH_MMDB"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, wrapEnv("WATCH_MMDB", err))
		if err == nil {
			c.WatchMmdb = b
		}
	}
	for key, dst := range map[string]*time.Duration{
		"RESOLVE_TIMEOUT": &c.ResolveTimeout,
		"READ_TIMEOUT":    &c.ReadTimeout,
		"WRITE_TIMEOUT":   &c.WriteTimeout,
		"CACHE_TTL":       &c.CacheTTL,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			errs = append(errs, wrapEnv(key, err))
			if err == nil {
				*dst = d
			}
		}
	}
	for key, dst := range map[string]*int{
		"MAX_REQUEST_BYTES": &c.MaxRequestBytes,
		"MAX_CONNECTIONS":   &c.MaxConnections,
		"CACHE_SIZE":        &c.CacheSize,
	} {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			errs = append(errs, wrapEnv(key, err))
			if err == nil {
				*dst = n
			}
		}
	}
	return errors.Join(errs...)
}

func wrapEnv(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	if c.MmdbPath == "" {
		return errors.New("MMDB_PATH is required")
	}
	if c.SocketPath == "" {
		return errors.New("socket path is required")
	}
	switch c.Resolver {
	case "dns", "command", "system":
	default:
		return fmt.Errorf("unknown resolver %q", c.Resolver)
	}
	if c.MaxRequestBytes <= 0 {
		return errors.New("max request bytes must be positive")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("cache size must not be negative")
	}
	return nil
}

// SlogLevel converts the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

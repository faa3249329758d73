package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used when no valid port is configured
const DefaultPort = 8000

// ErrInvalidPort is returned for port values that are not a number in 0-65535
var ErrInvalidPort = errors.New("invalid port number")

// Environment variables read by Load
const (
	EnvConfigPath = "ANTIPOSTA_CONFIG"
	EnvHost       = "ANTIPOSTA_HOST"
	EnvPort       = "ANTIPOSTA_PORT"
	EnvLogLevel   = "ANTIPOSTA_LOG_LEVEL"
	EnvRawHTML    = "ANTIPOSTA_RAW_HTML"
	EnvDebug      = "ANTIPOSTA_DEBUG"
)

// Config is the server configuration
type Config struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	ServerName        string        `yaml:"server_name" json:"server_name"`
	RawHTML           bool          `yaml:"raw_html" json:"raw_html"`
	LogLevel          string        `yaml:"log_level" json:"log_level"`
	Debug             bool          `yaml:"debug" json:"debug"`
	Dashboard         bool          `yaml:"dashboard" json:"dashboard"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`

	// Warnings lists recovered problems found while loading, for the caller to print
	Warnings []string `yaml:"-" json:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:              "",
		Port:              DefaultPort,
		ServerName:        "Antiposta-Test-Server/1.0",
		LogLevel:          "info",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, the config file and the environment,
// later sources overriding earlier ones. When configPath is empty the path is
// taken from ANTIPOSTA_CONFIG; a missing file is only an error when a path was given.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = os.Getenv(EnvConfigPath)
		explicit = configPath != ""
	}

	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile merges a YAML or JSON file into c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// JSON documents are valid YAML, one decoder serves both
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		c.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := ParsePort(v)
		if err != nil {
			c.Warnings = append(c.Warnings, PortWarnings(v)...)
			port = DefaultPort
		}
		c.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRawHTML); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRawHTML, err)
		}
		c.RawHTML = b
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}

// ParsePort parses a TCP port. Zero is accepted and picks a free port.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, s)
	}
	return port, nil
}

// PortWarnings returns the messages printed when value is rejected as a port
func PortWarnings(value string) []string {
	return []string{
		fmt.Sprintf("Invalid port number: %s", value),
		fmt.Sprintf("Using default port: %d", DefaultPort),
	}
}

// Validate checks c for values the server cannot start with
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout must not be negative, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DisplayHost is the host shown in the server URL
func (c *Config) DisplayHost() string {
	if c.Host == "" || c.Host == "0.0.0.0" || c.Host == "::" {
		return "localhost"
	}
	return c.Host
}

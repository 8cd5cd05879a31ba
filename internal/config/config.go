package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "WIREBENCH_"
)

// Config holds the benchmark client and stub server configuration
type Config struct {
	Workload    WorkloadConfig    `koanf:"workload"`
	Cycle       CycleConfig       `koanf:"cycle"`
	Measurement MeasurementConfig `koanf:"measurement"`
	REST        Endpoint          `koanf:"rest"`
	RPC         RPCConfig         `koanf:"rpc"`
	TLS         TLSConfig         `koanf:"tls"`
	Logging     LoggingConfig     `koanf:"logging"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Server      ServerConfig      `koanf:"server"`
}

// WorkloadConfig is the request every client sends in a cycle
type WorkloadConfig struct {
	ReturnCount int32 `koanf:"return_count"`
}

// CycleConfig controls the measurement loop
type CycleConfig struct {
	// Pause is waited before every cycle, including the first.
	Pause time.Duration `koanf:"pause"`

	// RequestTimeout bounds a single client's fetch.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxCycles stops the loop after n cycles. 0 runs until cancelled.
	MaxCycles int `koanf:"max_cycles"`
}

// MeasurementConfig controls sample computation
type MeasurementConfig struct {
	// ClampNegative replaces a negative deserialization time with zero.
	// The sample is flagged either way.
	ClampNegative bool `koanf:"clamp_negative"`
}

// Endpoint describes one benchmarked service
type Endpoint struct {
	Enabled bool   `koanf:"enabled"`
	Name    string `koanf:"name"`
	Address string `koanf:"address"`

	// Path is the REST resource path. Unused by RPC endpoints.
	Path string `koanf:"path"`

	// Plaintext selects h2c for RPC endpoints given as host:port.
	Plaintext bool `koanf:"plaintext"`

	// MaxReceiveMessageSize limits RPC responses. 0 means unlimited.
	MaxReceiveMessageSize int `koanf:"max_receive_message_size"`
}

// RPCConfig holds the two RPC service versions
type RPCConfig struct {
	V1 Endpoint `koanf:"v1"`
	V2 Endpoint `koanf:"v2"`
}

// TLSConfig is applied to https endpoints
type TLSConfig struct {
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
	CAPath             string `koanf:"ca_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `koanf:"level"`

	// Format is the log format (console, json)
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// ServerConfig holds the stub forecast server ports
type ServerConfig struct {
	RESTPort  int `koanf:"rest_port"`
	RPCV1Port int `koanf:"rpc_v1_port"`
	RPCV2Port int `koanf:"rpc_v2_port"`
}

// Load loads configuration from defaults, an optional TOML file and
// WIREBENCH_ environment variables, in that order of precedence.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Double underscores (__) preserve literal underscores in field names
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envKey maps WIREBENCH_RPC_V1_MAX__RECEIVE__MESSAGE__SIZE to rpc.v1.max_receive_message_size.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Workload: WorkloadConfig{
			ReturnCount: 10000,
		},
		Cycle: CycleConfig{
			Pause:          1 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Measurement: MeasurementConfig{
			ClampNegative: true,
		},
		REST: Endpoint{
			Enabled: true,
			Name:    "WebAPI",
			Address: "http://localhost:5004",
			Path:    "/weatherforecast",
		},
		RPC: RPCConfig{
			V1: Endpoint{
				Enabled:   true,
				Name:      "gRPC v1",
				Address:   "localhost:5001",
				Plaintext: true,
			},
			V2: Endpoint{
				Enabled:   true,
				Name:      "gRPC v2",
				Address:   "localhost:5002",
				Plaintext: true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Server: ServerConfig{
			RESTPort:  5004,
			RPCV1Port: 5001,
			RPCV2Port: 5002,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workload.ReturnCount < 0 {
		return fmt.Errorf("workload.return_count must not be negative, got %d", c.Workload.ReturnCount)
	}
	if c.Cycle.Pause < 0 {
		return fmt.Errorf("cycle.pause must not be negative")
	}
	if c.Cycle.RequestTimeout <= 0 {
		return fmt.Errorf("cycle.request_timeout must be positive")
	}
	if c.Cycle.MaxCycles < 0 {
		return fmt.Errorf("cycle.max_cycles must not be negative")
	}

	if err := c.REST.validateREST("rest"); err != nil {
		return err
	}
	if err := c.RPC.V1.validateRPC("rpc.v1"); err != nil {
		return err
	}
	if err := c.RPC.V2.validateRPC("rpc.v2"); err != nil {
		return err
	}
	if !c.REST.Enabled && !c.RPC.V1.Enabled && !c.RPC.V2.Enabled {
		return fmt.Errorf("at least one of rest, rpc.v1 or rpc.v2 must be enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or console)", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
			return err
		}
	}
	if err := validatePort("server.rest_port", c.Server.RESTPort); err != nil {
		return err
	}
	if err := validatePort("server.rpc_v1_port", c.Server.RPCV1Port); err != nil {
		return err
	}
	return validatePort("server.rpc_v2_port", c.Server.RPCV2Port)
}

func (e *Endpoint) validateREST(key string) error {
	if !e.Enabled {
		return nil
	}
	if e.Name == "" {
		return fmt.Errorf("%s.name is required", key)
	}
	u, err := url.Parse(e.Address)
	if err != nil {
		return fmt.Errorf("invalid %s.address: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s.address: %q (must be an http or https URL)", key, e.Address)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("invalid %s.path: %q (must start with /)", key, e.Path)
	}
	return nil
}

func (e *Endpoint) validateRPC(key string) error {
	if !e.Enabled {
		return nil
	}
	if e.Name == "" {
		return fmt.Errorf("%s.name is required", key)
	}
	if e.Address == "" {
		return fmt.Errorf("%s.address is required", key)
	}
	if e.MaxReceiveMessageSize < 0 {
		return fmt.Errorf("%s.max_receive_message_size must not be negative", key)
	}
	return nil
}

func validatePort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid %s: %d (must be 1-65535)", key, port)
	}
	return nil
}

// ClientTLS builds the TLS configuration used for https endpoints.
func (t TLSConfig) ClientTLS() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
	if t.CAPath == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(t.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", t.CAPath)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

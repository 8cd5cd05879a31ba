package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wirebench.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int32(10000), cfg.Workload.ReturnCount)
	assert.Equal(t, time.Second, cfg.Cycle.Pause)
	assert.Equal(t, 60*time.Second, cfg.Cycle.RequestTimeout)
	assert.Zero(t, cfg.Cycle.MaxCycles)
	assert.True(t, cfg.Measurement.ClampNegative)

	assert.Equal(t, "WebAPI", cfg.REST.Name)
	assert.Equal(t, "http://localhost:5004", cfg.REST.Address)
	assert.Equal(t, "/weatherforecast", cfg.REST.Path)
	assert.Equal(t, "localhost:5001", cfg.RPC.V1.Address)
	assert.Equal(t, "localhost:5002", cfg.RPC.V2.Address)
	assert.True(t, cfg.RPC.V1.Plaintext)
	assert.Zero(t, cfg.RPC.V1.MaxReceiveMessageSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5004, cfg.Server.RESTPort)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[workload]
return_count = 250

[cycle]
pause = "250ms"
max_cycles = 3

[measurement]
clamp_negative = false

[rpc.v2]
enabled = false

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int32(250), cfg.Workload.ReturnCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Cycle.Pause)
	assert.Equal(t, 3, cfg.Cycle.MaxCycles)
	assert.False(t, cfg.Measurement.ClampNegative)
	assert.False(t, cfg.RPC.V2.Enabled)
	assert.Equal(t, "gRPC v2", cfg.RPC.V2.Name, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[workload]
return_count = 250
`)
	t.Setenv("WIREBENCH_WORKLOAD_RETURN__COUNT", "42")
	t.Setenv("WIREBENCH_RPC_V1_ADDRESS", "forecasts.internal:6001")
	t.Setenv("WIREBENCH_RPC_V1_MAX__RECEIVE__MESSAGE__SIZE", "4096")
	t.Setenv("WIREBENCH_CYCLE_REQUEST__TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int32(42), cfg.Workload.ReturnCount)
	assert.Equal(t, "forecasts.internal:6001", cfg.RPC.V1.Address)
	assert.Equal(t, 4096, cfg.RPC.V1.MaxReceiveMessageSize)
	assert.Equal(t, 5*time.Second, cfg.Cycle.RequestTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")

	_, err = Load(writeConfig(t, "[workload\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "[logging]\nlevel = \"verbose\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "rest.address", envKey("WIREBENCH_REST_ADDRESS"))
	assert.Equal(t, "tls.insecure_skip_verify", envKey("WIREBENCH_TLS_INSECURE__SKIP__VERIFY"))
	assert.Equal(t, "server.rpc_v1_port", envKey("WIREBENCH_SERVER_RPC__V1__PORT"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative return count", func(c *Config) { c.Workload.ReturnCount = -1 }, "workload.return_count"},
		{"zero return count", func(c *Config) { c.Workload.ReturnCount = 0 }, ""},
		{"negative pause", func(c *Config) { c.Cycle.Pause = -time.Second }, "cycle.pause"},
		{"zero request timeout", func(c *Config) { c.Cycle.RequestTimeout = 0 }, "cycle.request_timeout"},
		{"rest without scheme", func(c *Config) { c.REST.Address = "localhost:5004" }, "rest.address"},
		{"rest relative path", func(c *Config) { c.REST.Path = "weatherforecast" }, "rest.path"},
		{"disabled rest is not validated", func(c *Config) { c.REST.Enabled = false; c.REST.Address = "" }, ""},
		{"rpc without address", func(c *Config) { c.RPC.V2.Address = "" }, "rpc.v2.address"},
		{"rpc without name", func(c *Config) { c.RPC.V1.Name = "" }, "rpc.v1.name"},
		{"negative max receive", func(c *Config) { c.RPC.V1.MaxReceiveMessageSize = -1 }, "max_receive_message_size"},
		{"nothing enabled", func(c *Config) {
			c.REST.Enabled, c.RPC.V1.Enabled, c.RPC.V2.Enabled = false, false, false
		}, "at least one"},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }, "logging.format"},
		{"metrics port checked when enabled", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }, "metrics.port"},
		{"metrics port ignored when disabled", func(c *Config) { c.Metrics.Port = 0 }, ""},
		{"server port out of range", func(c *Config) { c.Server.RPCV2Port = 70000 }, "server.rpc_v2_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientTLS(t *testing.T) {
	cfg, err := TLSConfig{InsecureSkipVerify: true}.ClientTLS()
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)

	_, err = TLSConfig{CAPath: filepath.Join(t.TempDir(), "missing.pem")}.ClientTLS()
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not a certificate"), 0o600))
	_, err = TLSConfig{CAPath: empty}.ClientTLS()
	require.Error(t, err)
}

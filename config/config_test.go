package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfigAndKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config must be written")
	_, err = os.Stat(cfg.KeystorePath)
	require.NoError(t, err, "default keystore must be written")

	require.NotEmpty(t, cfg.DataDir)
	require.NotEmpty(t, cfg.DeviceID)
	require.Equal(t, 60, cfg.PeriodicCheckSecs)

	// A second load must read the same file back, not recreate it.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.KeystorePath, again.KeystorePath)
}

func TestLoadExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
DataDir = "` + dir + `/data"
DeviceID = "bench-device"
BootstrapEndpoints = ["https://boot.example.com"]
DNSSeeds = ["seeds.example.com"]
UnifiedPushEndpoint = "https://ntfy.example.com/qnet"
PeriodicCheckSecs = 30

[Telemetry]
Endpoint = "otel.example.com:4317"
Insecure = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "bench-device", cfg.DeviceID)
	require.Equal(t, []string{"https://boot.example.com"}, cfg.BootstrapEndpoints)
	require.Equal(t, "otel.example.com:4317", cfg.Telemetry.Endpoint)
	require.True(t, cfg.Telemetry.Insecure)
	require.Equal(t, 30, cfg.PeriodicCheckSecs)
	require.Equal(t, ":7411", cfg.PushListenAddress, "push listen default must apply")

	_, err = os.Stat(cfg.KeystorePath)
	require.NoError(t, err, "keystore must be created next to the config")
}

func TestValidateRejectsBadEndpoint(t *testing.T) {
	cfg := &Config{
		DataDir:            "./data",
		DeviceID:           "dev",
		BootstrapEndpoints: []string{"not-a-url"},
	}
	require.Error(t, cfg.Validate())

	cfg.BootstrapEndpoints = []string{"https://boot.example.com"}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeCheckInterval(t *testing.T) {
	cfg := &Config{DataDir: "./data", DeviceID: "dev", PeriodicCheckSecs: -1}
	require.Error(t, cfg.Validate())
}

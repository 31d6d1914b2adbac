package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"qnetclient/crypto"

	"github.com/BurntSushi/toml"
)

// Config holds the light-node daemon configuration.
type Config struct {
	DataDir              string    `toml:"DataDir"`
	DeviceID             string    `toml:"DeviceID"`
	KeystorePath         string    `toml:"KeystorePath"`
	BootstrapEndpoints   []string  `toml:"BootstrapEndpoints"`
	DNSSeeds             []string  `toml:"DNSSeeds"`
	PushListenAddress    string    `toml:"PushListenAddress"`
	UnifiedPushEndpoint  string    `toml:"UnifiedPushEndpoint"`
	MetricsListenAddress string    `toml:"MetricsListenAddress"`
	WebsocketFeed        bool      `toml:"WebsocketFeed"`
	PeriodicCheckSecs    int       `toml:"PeriodicCheckSecs"`
	LogFile              string    `toml:"LogFile"`
	Telemetry            Telemetry `toml:"Telemetry"`
}

// Telemetry configures the OTLP exporters. Disabled when Endpoint is empty.
type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Headers  map[string]string `toml:"Headers"`
}

// Load reads the configuration from path, creating a default file (and a
// fresh keystore next to it) when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.KeystorePath == "" {
		cfg.KeystorePath = defaultKeystorePath(path)
	}
	if err := ensureKeystore(cfg.KeystorePath); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a typo would most likely break.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if strings.TrimSpace(c.DeviceID) == "" {
		return fmt.Errorf("DeviceID must not be empty")
	}
	for _, endpoint := range c.BootstrapEndpoints {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid bootstrap endpoint %q", endpoint)
		}
	}
	if c.UnifiedPushEndpoint != "" {
		if _, err := url.Parse(c.UnifiedPushEndpoint); err != nil {
			return fmt.Errorf("invalid unified push endpoint %q", c.UnifiedPushEndpoint)
		}
	}
	if c.PeriodicCheckSecs < 0 {
		return fmt.Errorf("PeriodicCheckSecs must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./qnet-data"
	}
	if strings.TrimSpace(cfg.DeviceID) == "" {
		cfg.DeviceID = defaultDeviceID()
	}
	if cfg.BootstrapEndpoints == nil {
		cfg.BootstrapEndpoints = []string{}
	}
	if cfg.DNSSeeds == nil {
		cfg.DNSSeeds = []string{}
	}
	if cfg.PushListenAddress == "" {
		cfg.PushListenAddress = ":7411"
	}
	if cfg.MetricsListenAddress == "" {
		cfg.MetricsListenAddress = ":9412"
	}
	if cfg.PeriodicCheckSecs == 0 {
		cfg.PeriodicCheckSecs = 60
	}
}

func ensureKeystore(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	return crypto.SaveToKeystore(path, key, "")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	keystorePath := defaultKeystorePath(path)
	if err := ensureKeystore(keystorePath); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:              "./qnet-data",
		DeviceID:             defaultDeviceID(),
		KeystorePath:         keystorePath,
		BootstrapEndpoints:   []string{},
		DNSSeeds:             []string{"seeds.qnet.network"},
		PushListenAddress:    ":7411",
		MetricsListenAddress: ":9412",
		PeriodicCheckSecs:    60,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "wallet.keystore")
}

func defaultDeviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "qnet-device"
	}
	return host
}

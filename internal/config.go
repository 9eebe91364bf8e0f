package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" or "90s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// VaultConfig holds the at-rest encryption material for private keys.
// Either Key (64 hex characters) or Passphrase+Salt must be set; when
// both are present the explicit key wins.
type VaultConfig struct {
	Key        string `yaml:"key,omitempty"`
	Passphrase string `yaml:"passphrase,omitempty"`
	Salt       string `yaml:"salt,omitempty"`
}

// Config is the top-level YAML configuration for the vault service.
type Config struct {
	DBPath     string      `yaml:"dbPath,omitempty"`
	LogLevel   string      `yaml:"logLevel,omitempty"`
	StagingTTL Duration    `yaml:"stagingTTL,omitempty"`
	Vault      VaultConfig `yaml:"vault"`
}

// DefaultConfig returns a Config populated with the defaults that apply
// when a field is absent from the YAML file.
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		StagingTTL: Duration(10 * time.Minute),
	}
}

// LoadConfig reads and validates a YAML configuration file. A missing path
// returns the defaults so the tool runs without a config file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.StagingTTL <= 0 {
		cfg.StagingTTL = Duration(10 * time.Minute)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

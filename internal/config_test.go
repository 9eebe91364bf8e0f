package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default log level = %q", cfg.LogLevel)
	}
	if cfg.StagingTTL != Duration(10*time.Minute) {
		t.Errorf("default staging TTL = %v", cfg.StagingTTL)
	}

	// A missing file behaves like no file at all.
	cfg, err = LoadConfig("/nonexistent/certvault.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" {
		t.Error("missing file did not fall back to defaults")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certvault.yaml")
	content := `
dbPath: /var/lib/certvault/vault.db
logLevel: debug
stagingTTL: 5m
vault:
  passphrase: open sesame
  salt: pepper
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/var/lib/certvault/vault.db" {
		t.Errorf("dbPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("logLevel = %q", cfg.LogLevel)
	}
	if cfg.StagingTTL != Duration(5*time.Minute) {
		t.Errorf("stagingTTL = %v", cfg.StagingTTL)
	}
	if cfg.Vault.Passphrase != "open sesame" || cfg.Vault.Salt != "pepper" {
		t.Error("vault section not parsed")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dbPath: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

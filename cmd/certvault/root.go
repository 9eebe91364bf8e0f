package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault/internal"
	"github.com/cerbyon/certvault/internal/keyvault"
	"github.com/cerbyon/certvault/internal/vaultstore"
)

var (
	configPath string
	logLevel   string
	dbPath     string

	cfg internal.Config
)

var rootCmd = &cobra.Command{
	Use:   "certvault",
	Short: "Certificate and key vault",
	Long:  "Ingest TLS/SSL certificates and private keys, catalog them in SQLite with chain links, keep keys encrypted at rest, and export bundles in PEM, DER, or PKCS#12.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		internal.SetupLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "certvault.yaml", "Path to config YAML")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (default: in-memory)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(websiteCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// openStore opens the store and loads the configured database file when
// one exists. The returned closer saves back to the file on success.
func openStore() (*vaultstore.SQLiteStore, func(persist bool), error) {
	store, err := vaultstore.OpenSQLite()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	// A missing database file is the first run, not an error.
	if cfg.DBPath != "" {
		if _, statErr := os.Stat(cfg.DBPath); statErr == nil {
			if err := store.LoadFromDisk(cfg.DBPath); err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		}
	}

	closer := func(persist bool) {
		if persist && cfg.DBPath != "" {
			// VACUUM INTO refuses to overwrite an existing file.
			_ = os.Remove(cfg.DBPath)
			if err := store.SaveToDisk(cfg.DBPath); err != nil {
				fmt.Println("warning: saving database:", err)
			}
		}
		_ = store.Close()
	}
	return store, closer, nil
}

// openVault builds the at-rest key vault from config. Returns nil when no
// key material is configured; operations touching private keys will fail
// with a clear error in that case.
func openVault() (*keyvault.Vault, error) {
	switch {
	case cfg.Vault.Key != "":
		return keyvault.NewFromHex(cfg.Vault.Key)
	case cfg.Vault.Passphrase != "":
		key, err := keyvault.Derive(cfg.Vault.Passphrase, cfg.Vault.Salt)
		if err != nil {
			return nil, err
		}
		defer keyvault.Zeroize(key)
		return keyvault.New(key)
	default:
		return nil, nil
	}
}

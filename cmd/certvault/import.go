package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault"
	"github.com/cerbyon/certvault/internal/vaultstore"
)

var importPassphrase string

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import certificates and keys into the vault",
	Long:  "Import certificate and key files (PEM, DER, PKCS#12, JKS) into the vault. Directories are walked recursively. Private keys are encrypted before they touch the database.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importPassphrase, "passphrase", "p", "", "Passphrase for encrypted containers")
}

func runImport(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	ok := false
	defer func() { closeStore(ok) }()

	vault, err := openVault()
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	ingestor := vaultstore.NewIngestor(store, vault)

	totals := struct{ certs, dups, keys int }{}
	for _, path := range args {
		if path == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			if err := importOne(ingestor, data, "stdin", &totals); err != nil {
				return err
			}
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("input path %s: %w", path, err)
		}
		if !info.IsDir() {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if err := importOne(ingestor, data, filepath.Base(path), &totals); err != nil {
				return err
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil {
				slog.Warn("reading file", "path", p, "error", err)
				return nil
			}
			if err := importOne(ingestor, data, filepath.Base(p), &totals); err != nil {
				slog.Warn("importing file", "path", p, "error", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
	}

	fmt.Printf("Imported %d certificate(s) and %d key(s), skipped %d duplicate(s)\n",
		totals.certs, totals.keys, totals.dups)
	ok = true
	return nil
}

func importOne(ingestor *vaultstore.Ingestor, data []byte, filename string, totals *struct{ certs, dups, keys int }) error {
	report, err := ingestor.Ingest(data, filename, importPassphrase)
	if err != nil {
		if errors.Is(err, certvault.ErrPasswordRequired) {
			return fmt.Errorf("%s is password protected, retry with --passphrase", filename)
		}
		return err
	}
	totals.certs += len(report.CertificateIDs)
	totals.dups += report.DuplicateCerts
	if report.KeyStored {
		totals.keys++
	}
	if report.DuplicateKey {
		totals.dups++
	}
	for _, linkErr := range report.LinkErrors {
		slog.Warn("chain linking", "file", filename, "error", linkErr)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault"
	"github.com/cerbyon/certvault/internal/vaultstore"
)

var (
	exportFormat   string
	exportKey      bool
	exportChain    bool
	exportPassword string
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export <certificate-id>",
	Short: "Export a certificate bundle",
	Long:  "Export a stored certificate as PEM (optionally with chain and key), DER (crt, optionally with chain), or PKCS#12 (pfx, with key and optionally chain).",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "pem", "Output format: pem, crt, pfx")
	exportCmd.Flags().BoolVarP(&exportKey, "key", "k", false, "Include the private key (pem only)")
	exportCmd.Flags().BoolVar(&exportChain, "chain", true, "Include the issuer chain")
	exportCmd.Flags().StringVar(&exportPassword, "password", "", "Encrypt pfx output with this password")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output path (default: suggested filename in current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	certID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("certificate id %q is not a number", args[0])
	}

	var format certvault.Format
	switch exportFormat {
	case "pem":
		format = certvault.FormatPEM
	case "crt", "der":
		format = certvault.FormatCRT
	case "pfx", "p12":
		format = certvault.FormatPKCS12
	default:
		return fmt.Errorf("unsupported format %q (want pem, crt, or pfx)", exportFormat)
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(false)

	vault, err := openVault()
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	exporter := vaultstore.NewExporter(store, vault)
	result, err := exporter.Export(certID, vaultstore.ExportOptions{
		Format:       format,
		IncludeKey:   exportKey,
		IncludeChain: exportChain,
		Password:     exportPassword,
	})
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = result.Filename
	}
	if err := os.WriteFile(out, result.Data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes, %s)\n", filepath.Clean(out), len(result.Data), result.ContentType)
	return nil
}

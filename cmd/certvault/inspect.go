package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault"
)

var inspectPassphrase string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Inspect a certificate or key file without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectPassphrase, "passphrase", "p", "", "Passphrase for encrypted containers")
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	format := certvault.DetectFormat(filepath.Base(path))
	fmt.Printf("File:   %s\n", path)
	fmt.Printf("Format: %s\n", format)

	result, err := certvault.Decode(data, format, inspectPassphrase)
	if err != nil {
		if errors.Is(err, certvault.ErrPasswordRequired) {
			return fmt.Errorf("%s is password protected, retry with --passphrase", path)
		}
		return err
	}

	for i, cert := range result.Certificates {
		class, classErr := certvault.Classify(cert)
		fmt.Printf("\nCertificate %d:\n", i+1)
		fmt.Printf("  Subject:       %s\n", cert.Subject.String())
		fmt.Printf("  Issuer:        %s\n", cert.Issuer.String())
		if classErr == nil {
			fmt.Printf("  Class:         %s\n", class)
		}
		fmt.Printf("  Serial:        %s\n", certvault.SerialHex(cert))
		fmt.Printf("  Not before:    %s\n", cert.NotBefore.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  Not after:     %s\n", cert.NotAfter.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  Public key:    %s\n", certvault.PublicKeyInfoOf(cert.PublicKey))
		fmt.Printf("  Signature:     %s\n", cert.SignatureAlgorithm)
		if len(cert.DNSNames) > 0 {
			fmt.Printf("  DNS names:     %s\n", strings.Join(cert.DNSNames, ", "))
		}
		fmt.Printf("  Content hash:  %s\n", certvault.CertHash(cert))
		fmt.Printf("  Subject hash:  %s\n", certvault.SubjectHash(cert))
		fmt.Printf("  Issuer hash:   %s\n", certvault.IssuerHash(cert))
	}

	if result.Key != nil {
		fmt.Printf("\nPrivate key:\n")
		fmt.Printf("  Type: %s\n", certvault.PrivateKeyInfo(result.Key))
		if hash, err := certvault.KeyHash(result.Key); err == nil {
			fmt.Printf("  Hash: %s\n", hash)
		}
		if leaf := result.Primary(); leaf != nil {
			if ok, err := certvault.KeyMatchesCert(result.Key, leaf); err == nil && ok {
				fmt.Printf("  Matches certificate 1\n")
			}
		}
	}

	if len(result.Certificates) == 0 && result.Key == nil {
		fmt.Println("\nNothing recognized in file")
	}
	return nil
}

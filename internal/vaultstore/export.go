package vaultstore

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cerbyon/certvault"
	"github.com/cerbyon/certvault/internal/keyvault"
)

var (
	// ErrNoPrivateKey is returned when an export needs the private key but
	// none is bound to the certificate.
	ErrNoPrivateKey = errors.New("no private key associated with certificate")
	// ErrKeyNotExportable is returned when the requested container format
	// cannot carry a private key.
	ErrKeyNotExportable = errors.New("format cannot include a private key")
	// ErrUnsupportedExportFormat is returned for unknown export formats.
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
)

// ExportOptions selects the container and contents of an export.
type ExportOptions struct {
	Format       certvault.Format
	IncludeKey   bool
	IncludeChain bool
	// Password encrypts PKCS#12 output. Empty means an unencrypted
	// archive; modern consumers accept both.
	Password string
}

// ExportResult is a ready-to-serve download: the bytes, the filename to
// suggest, and the MIME type.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Exporter composes downloadable bundles from stored records. Sealed keys
// are opened with the vault only for the duration of the export.
type Exporter struct {
	store Store
	vault *keyvault.Vault
}

// NewExporter returns an Exporter over the given store and vault.
func NewExporter(store Store, vault *keyvault.Vault) *Exporter {
	return &Exporter{store: store, vault: vault}
}

// Export builds a download for one certificate. PEM and CRT output can
// carry the chain, PEM can additionally carry the key, and PFX always
// carries the key.
func (e *Exporter) Export(certID int64, opts ExportOptions) (*ExportResult, error) {
	rec, err := e.store.CertificateByID(certID)
	if err != nil {
		return nil, err
	}

	switch opts.Format {
	case certvault.FormatPEM:
		return e.exportPEM(rec, opts)
	case certvault.FormatCRT:
		if opts.IncludeKey {
			return nil, ErrKeyNotExportable
		}
		return e.exportCRT(rec, opts)
	case certvault.FormatPKCS12:
		return e.exportPFX(rec, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, opts.Format)
	}
}

func (e *Exporter) exportPEM(rec *CertificateRecord, opts ExportOptions) (*ExportResult, error) {
	var buf bytes.Buffer

	buf.WriteString(rec.PEM)
	if opts.IncludeChain {
		for _, ancestor := range e.chainAbove(rec) {
			buf.WriteString(ancestor.PEM)
		}
	}

	// Key goes after the certificates, matching the download layout
	// consumers of combined .pem bundles expect here.
	if opts.IncludeKey {
		keyPEM, err := e.openKeyPEM(rec.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(keyPEM)
		keyvault.Zeroize(keyPEM)
	}

	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    exportFilename(rec, certvault.FormatPEM),
		ContentType: "application/x-pem-file",
	}, nil
}

func (e *Exporter) exportCRT(rec *CertificateRecord, opts ExportOptions) (*ExportResult, error) {
	certs, err := certvault.ParsePEMCertificates([]byte(rec.PEM))
	if err != nil {
		return nil, fmt.Errorf("decoding stored certificate %d: %w", rec.ID, err)
	}
	var buf bytes.Buffer
	buf.Write(certs[0].Raw)
	if opts.IncludeChain {
		cas, err := parseChainPEM(e.chainAbove(rec))
		if err != nil {
			return nil, err
		}
		for _, ca := range cas {
			buf.Write(ca.Raw)
		}
	}
	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    exportFilename(rec, certvault.FormatCRT),
		ContentType: "application/pkix-cert",
	}, nil
}

func (e *Exporter) exportPFX(rec *CertificateRecord, opts ExportOptions) (*ExportResult, error) {
	certs, err := certvault.ParsePEMCertificates([]byte(rec.PEM))
	if err != nil {
		return nil, fmt.Errorf("decoding stored certificate %d: %w", rec.ID, err)
	}

	keyDER, err := e.openKeyDER(rec.ID)
	if err != nil {
		return nil, err
	}
	defer keyvault.Zeroize(keyDER)
	key, err := certvault.ParseDERPrivateKey(keyDER)
	if err != nil {
		return nil, fmt.Errorf("decoding stored key for certificate %d: %w", rec.ID, err)
	}

	var cas []*x509.Certificate
	if opts.IncludeChain {
		cas, err = parseChainPEM(e.chainAbove(rec))
		if err != nil {
			return nil, err
		}
	}

	data, err := certvault.EncodePKCS12(key, certs[0], cas, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("encoding PKCS#12 for certificate %d: %w", rec.ID, err)
	}

	return &ExportResult{
		Data:        data,
		Filename:    exportFilename(rec, certvault.FormatPKCS12),
		ContentType: "application/x-pkcs12",
	}, nil
}

// chainAbove walks parent links from the certificate toward the root.
// The walk is defensive: a revisited ID or a chain past the depth bound
// ends the walk instead of looping, since stored links may have been
// corrupted outside the linker.
func (e *Exporter) chainAbove(rec *CertificateRecord) []*CertificateRecord {
	var chain []*CertificateRecord
	seen := map[int64]bool{rec.ID: true}
	current := rec
	for depth := 0; depth < maxChainDepth; depth++ {
		if current.ParentID == nil {
			return chain
		}
		parentID := *current.ParentID
		if seen[parentID] {
			slog.Warn("chain walk hit a cycle, truncating export chain", "cert", rec.ID, "repeat", parentID)
			return chain
		}
		parent, err := e.store.CertificateByID(parentID)
		if err != nil {
			slog.Warn("chain walk hit a dangling parent link", "cert", current.ID, "parent", parentID)
			return chain
		}
		seen[parentID] = true
		chain = append(chain, parent)
		current = parent
	}
	slog.Warn("chain walk exceeded depth bound, truncating export chain", "cert", rec.ID)
	return chain
}

// openKeyDER opens the sealed key bound to a certificate and returns the
// plaintext PKCS#8 DER. Callers must zeroize the result.
func (e *Exporter) openKeyDER(certID int64) ([]byte, error) {
	if e.vault == nil {
		return nil, errors.New("cannot open private key: no vault key configured")
	}
	keyRec, err := e.store.KeyForCertificate(certID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrNoPrivateKey
		}
		return nil, err
	}
	der, err := e.vault.Open(keyRec.SealedKey)
	if err != nil {
		return nil, fmt.Errorf("opening sealed key %d: %w", keyRec.ID, err)
	}
	return der, nil
}

// openKeyPEM is openKeyDER re-encoded as a PKCS#8 PEM block.
func (e *Exporter) openKeyPEM(certID int64) ([]byte, error) {
	der, err := e.openKeyDER(certID)
	if err != nil {
		return nil, err
	}
	defer keyvault.Zeroize(der)
	key, err := certvault.ParseDERPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("decoding stored key for certificate %d: %w", certID, err)
	}
	pemStr, err := certvault.MarshalPrivateKeyToPEM(key)
	if err != nil {
		return nil, err
	}
	return []byte(pemStr), nil
}

func parseChainPEM(chain []*CertificateRecord) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for _, rec := range chain {
		certs, err := certvault.ParsePEMCertificates([]byte(rec.PEM))
		if err != nil {
			return nil, fmt.Errorf("decoding stored certificate %d: %w", rec.ID, err)
		}
		out = append(out, certs[0])
	}
	return out, nil
}

func exportFilename(rec *CertificateRecord, format certvault.Format) string {
	name := certvault.SanitizeFileName(rec.Name)
	if name == "" {
		name = "certificate"
	}
	return name + "." + format.Ext()
}

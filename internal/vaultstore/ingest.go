package vaultstore

import (
	"crypto"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/breml/rootcerts/embedded"
	"github.com/jmoiron/sqlx/types"

	"github.com/cerbyon/certvault"
	"github.com/cerbyon/certvault/internal/keyvault"
)

var (
	trustedRootsOnce sync.Once
	trustedRootSet   map[string]bool
)

// trustedRootHashes returns the content hashes of the embedded Mozilla CA
// bundle, built once on first use.
func trustedRootHashes() map[string]bool {
	trustedRootsOnce.Do(func() {
		trustedRootSet = make(map[string]bool)
		certs, err := certvault.ParsePEMCertificates([]byte(embedded.MozillaCACertificatesPEM()))
		if err != nil {
			slog.Warn("parsing embedded root bundle", "error", err)
			return
		}
		for _, cert := range certs {
			trustedRootSet[certvault.CertHash(cert)] = true
		}
	})
	return trustedRootSet
}

// IngestReport summarizes one ingest: what was stored, what resolved to an
// already-stored record, and whether the container needs a passphrase.
type IngestReport struct {
	CertificateIDs []int64
	// DeduplicatedIDs are the existing record IDs that byte-identical
	// uploads resolved to instead of creating new rows.
	DeduplicatedIDs  []int64
	DuplicateCerts   int
	KeyID            int64
	KeyStored        bool
	DuplicateKey     bool
	KeyBoundTo       int64
	PasswordRequired bool
	LinkErrors       []error
}

// Ingestor runs the full intake pipeline: format detection, decoding,
// identity hashing, deduplication, classification, key sealing, and chain
// linking. Each certificate in an upload succeeds or fails independently.
type Ingestor struct {
	store  Store
	vault  *keyvault.Vault
	linker *Linker
}

// NewIngestor returns an Ingestor over the given store and vault.
func NewIngestor(store Store, vault *keyvault.Vault) *Ingestor {
	return &Ingestor{store: store, vault: vault, linker: NewLinker(store)}
}

// Linker exposes the ingestor's linker for maintenance operations.
func (in *Ingestor) Linker() *Linker { return in.linker }

// Ingest decodes raw upload bytes and persists their contents. The
// returned report is valid even when err is non-nil, since individual
// certificates may have been stored before a later failure.
func (in *Ingestor) Ingest(data []byte, filename, passphrase string) (*IngestReport, error) {
	format := certvault.DetectFormat(filename)
	report := &IngestReport{}

	result, err := certvault.Decode(data, format, passphrase)
	if err != nil {
		if errors.Is(err, certvault.ErrPasswordRequired) {
			report.PasswordRequired = true
		}
		return report, err
	}

	for _, cert := range result.Certificates {
		id, err := in.storeCertificate(cert, format, filename)
		if err != nil {
			if errors.Is(err, ErrDuplicateCertificate) {
				report.DuplicateCerts++
				if existing, lookupErr := in.store.CertificateByContentHash(certvault.CertHash(cert)); lookupErr == nil {
					report.DeduplicatedIDs = append(report.DeduplicatedIDs, existing.ID)
				}
				continue
			}
			slog.Warn("storing certificate", "file", filename, "subject", cert.Subject.String(), "error", err)
			continue
		}
		report.CertificateIDs = append(report.CertificateIDs, id)
	}

	report.LinkErrors = in.linker.LinkBatch(report.CertificateIDs)

	if result.Key != nil {
		if err := in.storeKey(result.Key, format, filename, result.Certificates, report); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				report.DuplicateKey = true
			} else {
				return report, err
			}
		}
	}

	if len(report.CertificateIDs) > 0 || report.KeyStored {
		slog.Info("ingested upload",
			"file", filename,
			"certs", len(report.CertificateIDs),
			"duplicates", report.DuplicateCerts,
			"key", report.KeyStored)
	}
	return report, nil
}

// storeCertificate builds and saves one certificate record.
func (in *Ingestor) storeCertificate(cert *x509.Certificate, format certvault.Format, filename string) (int64, error) {
	class, err := certvault.Classify(cert)
	if err != nil {
		return 0, err
	}

	sans := append([]string{}, cert.DNSNames...)
	for _, ip := range cert.IPAddresses {
		sans = append(sans, ip.String())
	}
	sansJSON, _ := json.Marshal(sans)

	contentHash := certvault.CertHash(cert)
	rec := &CertificateRecord{
		Name:               certvault.CommonName(cert),
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SerialNumber:       certvault.SerialHex(cert),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		Expired:            certvault.IsExpired(cert),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKey:          certvault.PublicKeyInfoOf(cert.PublicKey).String(),
		SANsJSON:           types.JSONText(sansJSON),
		Class:              string(class),
		ContentHash:        contentHash,
		SubjectHash:        certvault.SubjectHash(cert),
		IssuerHash:         certvault.IssuerHash(cert),
		Format:             string(format),
		OriginalFilename:   sql.NullString{String: filename, Valid: filename != ""},
		PEM:                certvault.CertToPEM(cert),
		TrustedRoot:        trustedRootHashes()[contentHash],
	}

	return in.store.SaveCertificate(rec)
}

// storeKey seals and saves a private key, then binds it to the matching
// certificate from the same upload, or failing that from the store.
func (in *Ingestor) storeKey(key crypto.PrivateKey, format certvault.Format, filename string, uploaded []*x509.Certificate, report *IngestReport) error {
	if in.vault == nil {
		return errors.New("cannot store private key: no vault key configured")
	}
	der, err := certvault.MarshalPrivateKeyDER(key)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}
	defer keyvault.Zeroize(der)

	keyHash, err := certvault.KeyHash(key)
	if err != nil {
		return fmt.Errorf("hashing private key: %w", err)
	}
	if _, err := in.store.KeyByKeyHash(keyHash); err == nil {
		return ErrDuplicateKey
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	sealed, err := in.vault.Seal(der)
	if err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}

	info := certvault.PrivateKeyInfo(key)
	rec := &KeyRecord{
		Name:             filename,
		KeyHash:          keyHash,
		Algorithm:        string(info.Algorithm),
		BitLength:        info.Bits,
		SealedKey:        sealed,
		OriginalFilename: sql.NullString{String: filename, Valid: filename != ""},
		Format:           string(format),
	}

	if certID := in.matchCertificate(key, uploaded); certID != 0 {
		rec.CertificateID = &certID
		report.KeyBoundTo = certID
	}

	id, err := in.store.SaveKey(rec)
	if err != nil {
		return err
	}
	report.KeyID = id
	report.KeyStored = true
	return nil
}

// matchCertificate finds the stored certificate whose public key matches
// the private key. Certificates from the same upload are preferred; the
// rest of the store is the fallback.
func (in *Ingestor) matchCertificate(key crypto.PrivateKey, uploaded []*x509.Certificate) int64 {
	for _, cert := range uploaded {
		if ok, err := certvault.KeyMatchesCert(key, cert); err != nil || !ok {
			continue
		}
		if rec, err := in.store.CertificateByContentHash(certvault.CertHash(cert)); err == nil {
			return rec.ID
		}
	}

	certs, err := in.store.AllCertificates()
	if err != nil {
		slog.Warn("listing certificates for key matching", "error", err)
		return 0
	}
	for _, rec := range certs {
		parsed, err := certvault.ParsePEMCertificates([]byte(rec.PEM))
		if err != nil {
			continue
		}
		if ok, err := certvault.KeyMatchesCert(key, parsed[0]); err == nil && ok {
			return rec.ID
		}
	}
	return 0
}

// PreviewEntry describes one item found in a staged upload.
type PreviewEntry struct {
	Kind    string // "certificate" or "key"
	Subject string
	Issuer  string
	Class   string
	Detail  string
}

// Preview decodes a staged upload without persisting anything.
func (in *Ingestor) Preview(staging *Staging, token string) ([]PreviewEntry, error) {
	entry, err := staging.Peek(token)
	if err != nil {
		return nil, err
	}

	result, err := certvault.Decode(entry.Data, entry.Format, entry.Passphrase)
	if err != nil {
		return nil, err
	}

	var entries []PreviewEntry
	for _, cert := range result.Certificates {
		class, classErr := certvault.Classify(cert)
		if classErr != nil {
			class = certvault.ClassLeaf
		}
		entries = append(entries, PreviewEntry{
			Kind:    "certificate",
			Subject: cert.Subject.String(),
			Issuer:  cert.Issuer.String(),
			Class:   string(class),
			Detail:  certvault.PublicKeyInfoOf(cert.PublicKey).String(),
		})
	}
	if result.Key != nil {
		entries = append(entries, PreviewEntry{
			Kind:   "key",
			Detail: certvault.PrivateKeyInfo(result.Key).String(),
		})
	}
	return entries, nil
}

// Commit consumes a staged upload and ingests it. The staged entry is
// gone afterward whether or not the ingest succeeded.
func (in *Ingestor) Commit(staging *Staging, token string) (*IngestReport, error) {
	entry, err := staging.Take(token)
	if err != nil {
		return nil, err
	}
	return in.Ingest(entry.Data, entry.Filename, entry.Passphrase)
}

// Package vaultstore persists certificates, sealed private keys, and
// website bindings, and links certificates into issuance chains.
package vaultstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Certificate classes as stored in the class column.
const (
	ClassRootCA         = "RootCA"
	ClassIntermediateCA = "IntermediateCA"
	ClassLeaf           = "Leaf"
)

var (
	// ErrCertNotFound is returned when no certificate matches a lookup.
	ErrCertNotFound = errors.New("certificate not found")
	// ErrKeyNotFound is returned when no key matches a lookup.
	ErrKeyNotFound = errors.New("key not found")
	// ErrDuplicateCertificate is returned when a certificate with the same
	// content hash is already stored.
	ErrDuplicateCertificate = errors.New("certificate already exists")
	// ErrDuplicateKey is returned when a key with the same key hash is
	// already stored.
	ErrDuplicateKey = errors.New("key already exists")
)

// CertificateRecord is one stored certificate plus the derived fields the
// linker and exporter operate on. PEM always holds exactly one certificate.
type CertificateRecord struct {
	ID                 int64          `db:"id"`
	Name               string         `db:"name"`
	Subject            string         `db:"subject"`
	Issuer             string         `db:"issuer"`
	SerialNumber       string         `db:"serial_number"`
	NotBefore          time.Time      `db:"not_before"`
	NotAfter           time.Time      `db:"not_after"`
	Expired            bool           `db:"expired"`
	SignatureAlgorithm string         `db:"signature_algorithm"`
	PublicKey          string         `db:"public_key"`
	SANsJSON           types.JSONText `db:"sans"`
	Class              string         `db:"class"`
	ContentHash        string         `db:"content_hash"`
	SubjectHash        string         `db:"subject_hash"`
	IssuerHash         string         `db:"issuer_hash"`
	ParentID           *int64         `db:"parent_id"`
	Format             string         `db:"format"`
	OriginalFilename   sql.NullString `db:"original_filename"`
	PEM                string         `db:"pem"`
	TrustedRoot        bool           `db:"trusted_root"`
}

// SANs decodes the stored subject alternative names.
func (c *CertificateRecord) SANs() []string {
	if len(c.SANsJSON) == 0 {
		return nil
	}
	var sans []string
	if err := json.Unmarshal(c.SANsJSON, &sans); err != nil {
		return nil
	}
	return sans
}

// SelfReferential reports whether the record claims itself as issuer.
func (c *CertificateRecord) SelfReferential() bool {
	return c.SubjectHash == c.IssuerHash
}

// KeyRecord is one stored private key. SealedKey is the vault-encrypted
// PKCS#8 DER; the plaintext key is never written to a KeyRecord.
type KeyRecord struct {
	ID               int64          `db:"id"`
	Name             string         `db:"name"`
	KeyHash          string         `db:"key_hash"`
	Algorithm        string         `db:"algorithm"`
	BitLength        int            `db:"bit_length"`
	SealedKey        []byte         `db:"sealed_key"`
	CertificateID    *int64         `db:"certificate_id"`
	OriginalFilename sql.NullString `db:"original_filename"`
	Format           string         `db:"format"`
}

// WebsiteBinding associates a monitored website with the certificate it
// serves, by normalized domain.
type WebsiteBinding struct {
	ID            int64  `db:"id"`
	URL           string `db:"url"`
	Domain        string `db:"domain"`
	CertificateID *int64 `db:"certificate_id"`
}

// Store is the persistence surface shared by the in-memory and SQLite
// implementations. Hash lookups back the chain linker; save operations
// enforce content and key hash uniqueness.
type Store interface {
	SaveCertificate(rec *CertificateRecord) (int64, error)
	CertificateByID(id int64) (*CertificateRecord, error)
	CertificateByContentHash(hash string) (*CertificateRecord, error)
	CertificatesBySubjectHash(hash string) ([]CertificateRecord, error)
	CertificatesByIssuerHash(hash string) ([]CertificateRecord, error)
	AllCertificates() ([]CertificateRecord, error)
	SetParent(certID int64, parentID *int64) error
	SetExpired(certID int64, expired bool) error
	DeleteCertificate(id int64) error

	SaveKey(rec *KeyRecord) (int64, error)
	KeyByID(id int64) (*KeyRecord, error)
	KeyByKeyHash(hash string) (*KeyRecord, error)
	KeyForCertificate(certID int64) (*KeyRecord, error)
	AllKeys() ([]KeyRecord, error)
	BindKeyToCertificate(keyID, certID int64) error
	DeleteKey(id int64) error

	SaveBinding(b *WebsiteBinding) (int64, error)
	UpdateBinding(b *WebsiteBinding) error
	BindingsForCertificate(certID int64) ([]WebsiteBinding, error)
	AllBindings() ([]WebsiteBinding, error)

	Close() error
}

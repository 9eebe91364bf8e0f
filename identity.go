package certvault

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// ContentHash returns the SHA-256 digest of the canonical DER encoding as
// lowercase hex. It is the identity of a certificate and the deduplication
// key across uploads: byte-identical content always hashes to the same value
// regardless of the container it arrived in.
func ContentHash(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// CertHash returns the content hash of a certificate's DER encoding.
func CertHash(cert *x509.Certificate) string {
	return ContentHash(cert.Raw)
}

// RelationshipHash returns the SHA-256 digest of a canonical distinguished
// name string as lowercase hex. Applied identically to subject and issuer
// names, so the subject hash of a parent equals the issuer hash of its
// children without comparing DN strings.
func RelationshipHash(canonicalName string) string {
	sum := sha256.Sum256([]byte(canonicalName))
	return hex.EncodeToString(sum[:])
}

// SubjectHash returns the relationship hash of the certificate's subject DN.
func SubjectHash(cert *x509.Certificate) string {
	return RelationshipHash(cert.Subject.String())
}

// IssuerHash returns the relationship hash of the certificate's issuer DN.
func IssuerHash(cert *x509.Certificate) string {
	return RelationshipHash(cert.Issuer.String())
}

// KeyHash returns the identity hash of a private key, computed over its
// unencrypted canonical PKCS#8 DER encoding. Hashing the decrypted form
// means re-uploading the same key under a different passphrase or container
// resolves to the same identity.
func KeyHash(key crypto.PrivateKey) (string, error) {
	der, err := MarshalPrivateKeyDER(key)
	if err != nil {
		return "", fmt.Errorf("computing key hash: %w", err)
	}
	return ContentHash(der), nil
}

// SerialHex returns the certificate serial number as canonical lowercase hex.
func SerialHex(cert *x509.Certificate) string {
	b := cert.SerialNumber.Bytes()
	if len(b) == 0 {
		return "00"
	}
	return hex.EncodeToString(b)
}

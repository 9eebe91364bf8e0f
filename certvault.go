// Package certvault provides the parsing, hashing, classification, and
// encoding primitives for the certificate vault: multi-format decoding of
// certificate/key bundles, canonical identity hashing, trust-chain
// classification, and PKCS#12/PKCS#7/JKS container handling.
package certvault

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	"golang.org/x/crypto/ssh"
)

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// CertToPEM encodes a certificate as PEM.
func CertToPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}))
}

// ParsePEMCertificates parses all certificates from a PEM bundle in order.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}


// describeCertParseError enriches a stdlib certificate parse failure by
// re-attempting the parse with the lenient certificate-transparency x509
// fork. A certificate the fork accepts is structurally valid ASN.1 that the
// stdlib rejects on strictness grounds; the returned error says so, which
// lets callers report "nonstandard certificate" instead of "garbage input".
func describeCertParseError(der []byte, stdErr error) error {
	ctCert, ctErr := ctx509.ParseCertificate(der)
	if ctx509.IsFatal(ctErr) || ctCert == nil {
		return stdErr
	}
	return fmt.Errorf("nonstandard certificate (subject %q): %w", ctCert.Subject.String(), stdErr)
}

// normalizeKey converts non-standard private key representations to their
// canonical Go form. Currently this dereferences *ed25519.PrivateKey
// (returned by ssh.ParseRawPrivateKey) to the value type so downstream type
// switches only need one case.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

// ParsePEMPrivateKey parses a PEM-encoded private key (PKCS#1, PKCS#8, EC,
// or OpenSSH). For "PRIVATE KEY" blocks it tries PKCS#8 first, then falls
// back to PKCS#1 and EC parsers to handle mislabeled keys.
func ParsePEMPrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		return ParseDERPrivateKey(block.Bytes)
	case "OPENSSH PRIVATE KEY":
		// OpenSSH uses a proprietary encoding; delegate to x/crypto/ssh
		key, err := ssh.ParseRawPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// ParsePEMPrivateKeyWithPassphrase parses a PEM-encoded private key, trying
// unencrypted parsing first and then the given passphrase for encrypted
// blocks (legacy RFC 1423 or OpenSSH).
func ParsePEMPrivateKeyWithPassphrase(pemData []byte, passphrase string) (crypto.PrivateKey, error) {
	if key, err := ParsePEMPrivateKey(pemData); err == nil {
		return key, nil
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	if block.Type == "OPENSSH PRIVATE KEY" {
		if passphrase == "" {
			return nil, errors.New("OpenSSH private key requires a passphrase")
		}
		key, err := ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	}

	//nolint:staticcheck // x509.IsEncryptedPEMBlock is deprecated but needed for legacy encrypted PEM support
	if !x509.IsEncryptedPEMBlock(block) {
		_, err := ParsePEMPrivateKey(pemData)
		return nil, err
	}

	//nolint:staticcheck // x509.DecryptPEMBlock is deprecated but needed for legacy encrypted PEM support
	decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, ErrPasswordRequired
	}
	clearPEM := pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted})
	key, err := ParsePEMPrivateKey(clearPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing decrypted private key: %w", err)
	}
	return key, nil
}

// ParseDERPrivateKey parses a DER-encoded private key, trying PKCS#8, then
// PKCS#1 RSA, then SEC1 EC.
func ParseDERPrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("parsing private key with any known DER format")
}

// MarshalPrivateKeyDER marshals a private key to its canonical unencrypted
// PKCS#8 DER encoding. This is the encoding identity hashes are computed
// over, so it must stay stable across releases.
func MarshalPrivateKeyDER(key crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(normalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}
	return der, nil
}

// MarshalPrivateKeyToPEM marshals a private key to PKCS#8 PEM format.
func MarshalPrivateKeyToPEM(key crypto.PrivateKey) (string, error) {
	der, err := MarshalPrivateKeyDER(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	})), nil
}

// GetPublicKey extracts the public key from a private key via crypto.Signer.
func GetPublicKey(priv crypto.PrivateKey) (crypto.PublicKey, error) {
	if signer, ok := normalizeKey(priv).(crypto.Signer); ok {
		return signer.Public(), nil
	}
	return nil, fmt.Errorf("unsupported private key type: %T", priv)
}

// KeyMatchesCert reports whether a private key corresponds to the public key
// in a certificate. Uses the Equal method available on all standard public
// key types, which handles cross-type mismatches by returning false.
func KeyMatchesCert(priv crypto.PrivateKey, cert *x509.Certificate) (bool, error) {
	pub, err := GetPublicKey(priv)
	if err != nil {
		return false, err
	}
	type equalKey interface {
		Equal(crypto.PublicKey) bool
	}
	eq, ok := pub.(equalKey)
	if !ok {
		return false, fmt.Errorf("unsupported public key type: %T", pub)
	}
	return eq.Equal(cert.PublicKey), nil
}

// CommonName returns a display name for the certificate. Falls back to the
// first DNS SAN, then to "serial:<n>" when no CN or SAN is present.
func CommonName(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0]
	}
	return fmt.Sprintf("serial:%s", cert.SerialNumber.String())
}

// SanitizeFileName replaces wildcards and path separators so a certificate
// name is safe to use as an export filename.
func SanitizeFileName(name string) string {
	r := strings.NewReplacer("*", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}

package certvault

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// PKCS12Contents holds the result of decoding a PKCS#12/PFX archive: an
// optional private key, the primary (leaf) certificate, and any additional
// CA certificates in archive order.
type PKCS12Contents struct {
	Key     crypto.PrivateKey
	Leaf    *x509.Certificate
	CACerts []*x509.Certificate
}

// validatePKCS12KeyType checks that the private key is a supported type for
// PKCS#12 encoding.
func validatePKCS12KeyType(privateKey crypto.PrivateKey) error {
	switch privateKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return nil
	default:
		return fmt.Errorf("unsupported private key type %T", privateKey)
	}
}

// DecodePKCS12 decodes a PKCS#12/PFX archive. A wrong or missing password is
// reported as ErrPasswordRequired, distinct from structural corruption, so
// callers can re-prompt instead of treating the archive as garbage.
func DecodePKCS12(pfxData []byte, password string) (*PKCS12Contents, error) {
	key, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		if errors.Is(err, gopkcs12.ErrIncorrectPassword) {
			return nil, ErrPasswordRequired
		}
		return nil, newFormatError(FormatPKCS12, err)
	}
	return &PKCS12Contents{Key: key, Leaf: leaf, CACerts: caCerts}, nil
}

// EncodePKCS12 creates a PKCS#12/PFX archive from a private key, leaf cert,
// and CA chain. An empty password produces an unencrypted archive; a
// non-empty password uses the best available modern encryption.
func EncodePKCS12(privateKey crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, password string) ([]byte, error) {
	privateKey = normalizeKey(privateKey)
	if err := validatePKCS12KeyType(privateKey); err != nil {
		return nil, err
	}
	if password == "" {
		return gopkcs12.Passwordless.Encode(privateKey, leaf, caCerts, "")
	}
	return gopkcs12.Modern.Encode(privateKey, leaf, caCerts, password)
}

// DecodePKCS7 decodes a DER-encoded certs-only PKCS#7 bundle and returns the
// certificates it contains.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}

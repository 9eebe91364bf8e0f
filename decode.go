package certvault

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
)

// DecodeResult holds everything extracted from one uploaded blob: zero or
// more certificates in container order (the first successfully parsed one is
// the primary, the rest form the supplied chain) and at most one private key.
//
// PasswordRequired is set when an encrypted container could not be opened
// with the given passphrase. It is a routing decision, not a detail of the
// error text: callers re-prompt instead of reporting a hard failure.
type DecodeResult struct {
	Certificates     []*x509.Certificate
	Key              crypto.PrivateKey
	PasswordRequired bool
}

// Primary returns the first certificate in the result, or nil.
func (r *DecodeResult) Primary() *x509.Certificate {
	if len(r.Certificates) == 0 {
		return nil
	}
	return r.Certificates[0]
}

// Chain returns the certificates after the primary one.
func (r *DecodeResult) Chain() []*x509.Certificate {
	if len(r.Certificates) < 2 {
		return nil
	}
	return r.Certificates[1:]
}

// Decode extracts certificates and a private key from raw bytes. The format
// is the detector's extension hint; content that contradicts the hint is
// resolved by fallback parses. PEM input degrades gracefully block by block,
// while PKCS#12 and single-certificate formats fail atomically.
func Decode(data []byte, format Format, passphrase string) (*DecodeResult, error) {
	if len(data) == 0 {
		return nil, newFormatError(format, errors.New("empty input"))
	}

	switch format {
	case FormatPEM:
		return decodePEM(data, passphrase)
	case FormatCRT:
		return decodeCertificateBlob(data)
	case FormatKey:
		return decodeKeyBlob(data, passphrase)
	case FormatPKCS12:
		return decodePKCS12Blob(data, passphrase)
	default:
		return decodeUnknown(data, passphrase)
	}
}

// decodePEM splits the input into PEM blocks and attempts each one
// independently: private key first (if no key has been resolved yet), then
// certificate. Blocks that parse as neither are skipped, so one malformed or
// unsupported block never fails the whole bundle. Block order is preserved.
func decodePEM(data []byte, passphrase string) (*DecodeResult, error) {
	result := &DecodeResult{}
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		if result.Key == nil && strings.Contains(block.Type, "PRIVATE KEY") {
			single := pem.EncodeToMemory(block)
			key, err := ParsePEMPrivateKeyWithPassphrase(single, passphrase)
			if err == nil && key != nil {
				result.Key = key
				continue
			}
			if errors.Is(err, ErrPasswordRequired) {
				result.PasswordRequired = true
			}
			continue
		}

		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				continue
			}
			result.Certificates = append(result.Certificates, cert)
		}
	}

	if result.PasswordRequired && result.Key == nil && len(result.Certificates) == 0 {
		return result, ErrPasswordRequired
	}
	if result.Key == nil && len(result.Certificates) == 0 {
		return nil, newFormatError(FormatPEM, errors.New("no certificates or private keys found"))
	}
	return result, nil
}

// decodeCertificateBlob parses a single-certificate container. PEM is tried
// first, then raw DER (files named .crt hold either), then a certs-only
// PKCS#7 bundle. No key parse is attempted.
func decodeCertificateBlob(data []byte) (*DecodeResult, error) {
	if IsPEM(data) {
		if certs, err := ParsePEMCertificates(data); err == nil {
			return &DecodeResult{Certificates: certs}, nil
		}
	}
	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return &DecodeResult{Certificates: certs}, nil
	}
	if certs, err := DecodePKCS7(data); err == nil {
		return &DecodeResult{Certificates: certs}, nil
	}
	// Re-run the DER parse to surface the descriptive error.
	_, derErr := x509.ParseCertificate(data)
	return nil, newFormatError(FormatCRT, describeCertParseError(data, derErr))
}

// decodeKeyBlob parses a standalone private key, trying the PEM encoding
// first and falling back to the alternate binary encoding before giving up.
func decodeKeyBlob(data []byte, passphrase string) (*DecodeResult, error) {
	if IsPEM(data) {
		key, err := ParsePEMPrivateKeyWithPassphrase(data, passphrase)
		if err == nil {
			return &DecodeResult{Key: key}, nil
		}
		if errors.Is(err, ErrPasswordRequired) {
			return &DecodeResult{PasswordRequired: true}, ErrPasswordRequired
		}
	}
	if key, err := ParseDERPrivateKey(data); err == nil {
		return &DecodeResult{Key: key}, nil
	}
	return nil, newFormatError(FormatKey, errors.New("not a PEM or DER private key"))
}

// decodePKCS12Blob opens a PKCS#12 archive atomically. A wrong or missing
// passphrase is surfaced via PasswordRequired, distinct from corruption.
func decodePKCS12Blob(data []byte, passphrase string) (*DecodeResult, error) {
	contents, err := DecodePKCS12(data, passphrase)
	if err != nil {
		if errors.Is(err, ErrPasswordRequired) {
			return &DecodeResult{PasswordRequired: true}, ErrPasswordRequired
		}
		return nil, err
	}

	result := &DecodeResult{Key: contents.Key}
	if contents.Leaf != nil {
		result.Certificates = append(result.Certificates, contents.Leaf)
	}
	result.Certificates = append(result.Certificates, contents.CACerts...)
	return result, nil
}

// decodeUnknown resolves an unrecognized extension by content: PEM marker,
// JKS magic, then the binary formats in priority order (DER certificates,
// PKCS#7, DER private key, PKCS#12 last since it has no cheap signature).
func decodeUnknown(data []byte, passphrase string) (*DecodeResult, error) {
	if IsPEM(data) {
		return decodePEM(data, passphrase)
	}

	if IsJKS(data) {
		certs, keys, err := DecodeJKS(data, passphrase)
		if err != nil {
			return nil, newFormatError(FormatUnknown, err)
		}
		result := &DecodeResult{Certificates: certs}
		if len(keys) > 0 {
			result.Key = keys[0]
		}
		return result, nil
	}

	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return &DecodeResult{Certificates: certs}, nil
	}
	if certs, err := DecodePKCS7(data); err == nil {
		return &DecodeResult{Certificates: certs}, nil
	}
	if key, err := ParseDERPrivateKey(data); err == nil {
		return &DecodeResult{Key: key}, nil
	}

	result, err := decodePKCS12Blob(data, passphrase)
	if err == nil || errors.Is(err, ErrPasswordRequired) {
		return result, err
	}
	return nil, newFormatError(FormatUnknown, errors.New("no known container format matched"))
}

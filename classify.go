package certvault

import (
	"bytes"
	"crypto/x509"
	"errors"
	"time"
)

// IsExpired reports whether the certificate's validity period has ended.
func IsExpired(cert *x509.Certificate) bool {
	return time.Now().After(cert.NotAfter)
}

// Class labels a certificate's position in a trust chain.
type Class string

const (
	ClassRootCA         Class = "RootCA"
	ClassIntermediateCA Class = "IntermediateCA"
	ClassLeaf           Class = "Leaf"
)

// IsSelfSigned reports whether the certificate's subject and issuer DNs are
// byte-identical in their raw ASN.1 encoding.
func IsSelfSigned(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawSubject, cert.RawIssuer)
}

// Classify labels a certificate as root CA, intermediate CA, or leaf.
//
// A certificate without a basic-constraints extension is a leaf regardless of
// self-signedness. With the extension present: self-signed with the CA flag
// set is a root, non-self-signed with the CA flag set is an intermediate,
// and everything else is a leaf.
//
// Pure function: no I/O, same input always yields the same class.
func Classify(cert *x509.Certificate) (Class, error) {
	if cert == nil {
		return "", errors.New("classify: nil certificate")
	}
	if !cert.BasicConstraintsValid {
		return ClassLeaf, nil
	}
	if IsSelfSigned(cert) {
		if cert.IsCA {
			return ClassRootCA, nil
		}
		return ClassLeaf, nil
	}
	if cert.IsCA {
		return ClassIntermediateCA, nil
	}
	return ClassLeaf, nil
}

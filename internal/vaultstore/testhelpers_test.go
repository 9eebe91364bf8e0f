package vaultstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/cerbyon/certvault/internal/keyvault"
)

var testSerial int64 = 100

// testCA creates a self-signed CA with the given name.
func testCA(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	return testCert(t, cn, nil, nil, true)
}

// testChild creates a certificate for cn signed by the given parent. A CA
// child is an intermediate, otherwise a leaf with cn as DNS name.
func testChild(t *testing.T, cn string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, isCA bool) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	return testCert(t, cn, parent, parentKey, isCA)
}

func testCert(t *testing.T, cn string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, isCA bool) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	testSerial++
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(testSerial),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  isCA,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	if !isCA {
		template.DNSNames = []string{cn}
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	}
	signerCert := template
	signerKey := key
	if parent != nil {
		signerCert = parent
		signerKey = parentKey
	}
	der, err := x509.CreateCertificate(rand.Reader, template, signerCert, &key.PublicKey, signerKey)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert, key
}

func pemOf(t *testing.T, cert *x509.Certificate) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func keyPEMOf(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func newTestVault(t *testing.T) *keyvault.Vault {
	t.Helper()
	key := make([]byte, keyvault.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	v, err := keyvault.New(key)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func newTestIngestor(t *testing.T) (*MemStore, *Ingestor) {
	t.Helper()
	store := NewMemStore()
	return store, NewIngestor(store, newTestVault(t))
}

// ingestCert stores one certificate through the full pipeline and returns
// its record.
func ingestCert(t *testing.T, in *Ingestor, store Store, cert *x509.Certificate, filename string) *CertificateRecord {
	t.Helper()
	report, err := in.Ingest(pemOf(t, cert), filename, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CertificateIDs) != 1 {
		t.Fatalf("ingest of %s stored %d certificates, want 1", filename, len(report.CertificateIDs))
	}
	rec, err := store.CertificateByID(report.CertificateIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

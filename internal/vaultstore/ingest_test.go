package vaultstore

import (
	"bytes"
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/cerbyon/certvault"
)

func TestIngestCertificate(t *testing.T) {
	root, rootKey := testCA(t, "Ingest Root")
	leaf, _ := testChild(t, "leaf.ingest.test", root, rootKey, false)

	store, in := newTestIngestor(t)
	rec := ingestCert(t, in, store, leaf, "leaf.pem")

	if rec.Class != ClassLeaf {
		t.Errorf("class = %s, want %s", rec.Class, ClassLeaf)
	}
	if rec.Name != "leaf.ingest.test" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.ContentHash != certvault.CertHash(leaf) {
		t.Error("content hash mismatch")
	}
	if rec.SubjectHash != certvault.SubjectHash(leaf) || rec.IssuerHash != certvault.IssuerHash(leaf) {
		t.Error("relationship hash mismatch")
	}
	if rec.Expired {
		t.Error("freshly issued certificate marked expired")
	}
	if len(rec.SANs()) != 1 || rec.SANs()[0] != "leaf.ingest.test" {
		t.Errorf("SANs = %v", rec.SANs())
	}

	rootRec := ingestCert(t, in, store, root, "root.pem")
	if rootRec.Class != ClassRootCA {
		t.Errorf("root class = %s, want %s", rootRec.Class, ClassRootCA)
	}
}

func TestIngestDeduplicates(t *testing.T) {
	cert, _ := testCA(t, "Dup Root")
	store, in := newTestIngestor(t)
	first := ingestCert(t, in, store, cert, "one.pem")

	report, err := in.Ingest(pemOf(t, cert), "two.pem", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CertificateIDs) != 0 {
		t.Error("duplicate certificate stored twice")
	}
	if report.DuplicateCerts != 1 {
		t.Errorf("DuplicateCerts = %d, want 1", report.DuplicateCerts)
	}
	// Re-uploading identical bytes resolves to the existing record.
	if len(report.DeduplicatedIDs) != 1 || report.DeduplicatedIDs[0] != first.ID {
		t.Errorf("DeduplicatedIDs = %v, want [%d]", report.DeduplicatedIDs, first.ID)
	}

	certs, err := store.AllCertificates()
	if err != nil {
		t.Fatal(err)
	}
	if len(certs) != 1 {
		t.Fatalf("store holds %d certificates, want 1", len(certs))
	}
}

func TestIngestPartialFailureKeepsGoodCerts(t *testing.T) {
	// A bundle holding one stored-already cert and one new cert: the new
	// one still lands.
	certA, _ := testCA(t, "Partial A")
	certB, _ := testCA(t, "Partial B")

	store, in := newTestIngestor(t)
	ingestCert(t, in, store, certA, "a.pem")

	bundle := append(pemOf(t, certA), pemOf(t, certB)...)
	report, err := in.Ingest(bundle, "bundle.pem", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CertificateIDs) != 1 || report.DuplicateCerts != 1 {
		t.Errorf("stored=%d dup=%d, want 1 and 1", len(report.CertificateIDs), report.DuplicateCerts)
	}
}

func TestIngestKeySealedAtRest(t *testing.T) {
	leaf, leafKey := testChild(t, "sealed.ingest.test", nil, nil, false)

	store, in := newTestIngestor(t)
	bundle := append(pemOf(t, leaf), keyPEMOf(t, leafKey)...)
	report, err := in.Ingest(bundle, "bundle.pem", "")
	if err != nil {
		t.Fatal(err)
	}
	if !report.KeyStored {
		t.Fatal("key not stored")
	}

	keyRec, err := store.KeyByID(report.KeyID)
	if err != nil {
		t.Fatal(err)
	}
	plainDER, err := x509.MarshalPKCS8PrivateKey(leafKey)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(keyRec.SealedKey, plainDER) {
		t.Error("stored key contains plaintext DER")
	}
	if bytes.Contains(keyRec.SealedKey, plainDER[:32]) {
		t.Error("stored key leaks plaintext prefix")
	}
	if keyRec.Algorithm != "ECDSA" {
		t.Errorf("algorithm = %q", keyRec.Algorithm)
	}
}

func TestIngestKeyBindsToCertificate(t *testing.T) {
	leaf, leafKey := testChild(t, "bound.ingest.test", nil, nil, false)

	store, in := newTestIngestor(t)
	bundle := append(pemOf(t, leaf), keyPEMOf(t, leafKey)...)
	report, err := in.Ingest(bundle, "bundle.pem", "")
	if err != nil {
		t.Fatal(err)
	}

	keyRec, err := store.KeyForCertificate(report.CertificateIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	if keyRec.ID != report.KeyID {
		t.Error("bound key is not the ingested key")
	}
	if report.KeyBoundTo != report.CertificateIDs[0] {
		t.Error("report does not record the binding")
	}
}

func TestIngestKeyBindsToEarlierCertificate(t *testing.T) {
	// Key uploaded in a later file still finds its certificate.
	leaf, leafKey := testChild(t, "late-key.ingest.test", nil, nil, false)

	store, in := newTestIngestor(t)
	rec := ingestCert(t, in, store, leaf, "cert.pem")

	report, err := in.Ingest(keyPEMOf(t, leafKey), "key.key", "")
	if err != nil {
		t.Fatal(err)
	}
	if !report.KeyStored || report.KeyBoundTo != rec.ID {
		t.Error("late key did not bind to stored certificate")
	}
}

func TestIngestDuplicateKey(t *testing.T) {
	_, leafKey := testChild(t, "dupkey.ingest.test", nil, nil, false)

	_, in := newTestIngestor(t)
	if _, err := in.Ingest(keyPEMOf(t, leafKey), "key.key", ""); err != nil {
		t.Fatal(err)
	}

	report, err := in.Ingest(keyPEMOf(t, leafKey), "again.key", "")
	if err != nil {
		t.Fatal(err)
	}
	if !report.DuplicateKey {
		t.Error("duplicate key not reported")
	}
	if report.KeyStored {
		t.Error("duplicate key stored twice")
	}
}

func TestIngestWithoutVaultRejectsKeys(t *testing.T) {
	leaf, leafKey := testChild(t, "novault.ingest.test", nil, nil, false)

	store := NewMemStore()
	in := NewIngestor(store, nil)

	// Certs alone are fine without a vault.
	if _, err := in.Ingest(pemOf(t, leaf), "cert.pem", ""); err != nil {
		t.Fatal(err)
	}
	// Key material is not.
	if _, err := in.Ingest(keyPEMOf(t, leafKey), "key.key", ""); err == nil {
		t.Error("expected error storing key without a vault")
	}
}

func TestIngestPasswordRequired(t *testing.T) {
	cert, key := testChild(t, "locked.ingest.test", nil, nil, false)
	data, err := certvault.EncodePKCS12(key, cert, nil, "secret")
	if err != nil {
		t.Fatal(err)
	}

	_, in := newTestIngestor(t)
	report, err := in.Ingest(data, "bundle.pfx", "")
	if !errors.Is(err, certvault.ErrPasswordRequired) {
		t.Fatalf("got %v, want ErrPasswordRequired", err)
	}
	if !report.PasswordRequired {
		t.Error("PasswordRequired flag not set")
	}

	report, err = in.Ingest(data, "bundle.pfx", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CertificateIDs) != 1 || !report.KeyStored {
		t.Error("correct passphrase did not ingest the bundle")
	}
}

func TestStagingPreviewAndCommit(t *testing.T) {
	leaf, leafKey := testChild(t, "staged.ingest.test", nil, nil, false)
	bundle := append(pemOf(t, leaf), keyPEMOf(t, leafKey)...)

	store, in := newTestIngestor(t)
	staging := NewStaging(time.Minute)

	token, err := staging.Put("bundle.pem", certvault.FormatPEM, bundle, "")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := in.Preview(staging, token)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("preview found %d entries, want cert and key", len(entries))
	}

	// Preview must not persist anything.
	certs, err := store.AllCertificates()
	if err != nil {
		t.Fatal(err)
	}
	if len(certs) != 0 {
		t.Fatal("preview persisted certificates")
	}

	report, err := in.Commit(staging, token)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CertificateIDs) != 1 || !report.KeyStored {
		t.Error("commit did not ingest the staged bundle")
	}

	// The token is consumed.
	if _, err := in.Commit(staging, token); !errors.Is(err, ErrStagedNotFound) {
		t.Errorf("second commit: got %v, want ErrStagedNotFound", err)
	}
}

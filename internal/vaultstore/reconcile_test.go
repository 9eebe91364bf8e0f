package vaultstore

import (
	"testing"
	"time"
)

func TestReconcileExpiry(t *testing.T) {
	store := NewMemStore()

	fresh := sampleCert("fresh.test", "h-fresh", "s1", "i1")
	stale := sampleCert("stale.test", "h-stale", "s2", "i2")
	stale.NotAfter = time.Now().Add(-time.Hour)
	// Simulate a record written while the cert was still valid.
	stale.Expired = false
	wrong := sampleCert("wrong.test", "h-wrong", "s3", "i3")
	wrong.Expired = true // valid cert incorrectly flagged

	for _, rec := range []*CertificateRecord{fresh, stale, wrong} {
		if _, err := store.SaveCertificate(rec); err != nil {
			t.Fatal(err)
		}
	}

	changed, err := ReconcileExpiry(store)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	checks := map[string]bool{"h-fresh": false, "h-stale": true, "h-wrong": false}
	for hash, want := range checks {
		rec, err := store.CertificateByContentHash(hash)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Expired != want {
			t.Errorf("%s: expired = %v, want %v", hash, rec.Expired, want)
		}
	}

	// Second run is a no-op.
	changed, err = ReconcileExpiry(store)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("second run changed %d records", changed)
	}
}

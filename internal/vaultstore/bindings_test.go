package vaultstore

import (
	"testing"
)

func TestBindWebsite(t *testing.T) {
	leaf, _ := testChild(t, "shop.bind.test", nil, nil, false)

	store, in := newTestIngestor(t)
	rec := ingestCert(t, in, store, leaf, "shop.pem")

	binding, err := BindWebsite(store, "https://www.shop.bind.test/checkout")
	if err != nil {
		t.Fatal(err)
	}
	if binding.Domain != "shop.bind.test" {
		t.Errorf("domain = %q", binding.Domain)
	}
	if binding.CertificateID == nil || *binding.CertificateID != rec.ID {
		t.Error("binding did not find the certificate")
	}
}

func TestBindWebsiteNoMatch(t *testing.T) {
	store := NewMemStore()
	binding, err := BindWebsite(store, "https://nothing.bind.test")
	if err != nil {
		t.Fatal(err)
	}
	if binding.CertificateID != nil {
		t.Error("binding matched a certificate in an empty store")
	}

	if _, err := BindWebsite(store, ""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestRebindWebsites(t *testing.T) {
	store, in := newTestIngestor(t)

	// Website registered before its certificate exists.
	binding, err := BindWebsite(store, "late.bind.test")
	if err != nil {
		t.Fatal(err)
	}
	if binding.CertificateID != nil {
		t.Fatal("premature match")
	}

	leaf, _ := testChild(t, "late.bind.test", nil, nil, false)
	rec := ingestCert(t, in, store, leaf, "late.pem")

	bound, err := RebindWebsites(store)
	if err != nil {
		t.Fatal(err)
	}
	if bound != 1 {
		t.Errorf("bound = %d, want 1", bound)
	}

	all, err := store.AllBindings()
	if err != nil {
		t.Fatal(err)
	}
	if all[0].CertificateID == nil || *all[0].CertificateID != rec.ID {
		t.Error("rebind did not attach the certificate")
	}
}

package vaultstore

import (
	"errors"
	"log/slog"

	"github.com/cerbyon/certvault"
)

// BindWebsite records a monitored website and associates it with the
// stored certificate covering its domain, if one exists. The binding is
// saved either way so a later ingest can claim it via RebindWebsites.
func BindWebsite(store Store, url string) (*WebsiteBinding, error) {
	domain := certvault.RegistrableDomain(url)
	if domain == "" {
		return nil, errors.New("website URL has no usable hostname")
	}

	binding := &WebsiteBinding{URL: url, Domain: domain}
	if rec, err := findCertificateForDomain(store, domain); err != nil {
		return nil, err
	} else if rec != nil {
		binding.CertificateID = &rec.ID
	}

	if _, err := store.SaveBinding(binding); err != nil {
		return nil, err
	}
	slog.Debug("saved website binding", "domain", domain, "bound", binding.CertificateID != nil)
	return binding, nil
}

// RebindWebsites re-matches every unbound website against the current
// certificate set. Returns the number of bindings that gained a
// certificate.
func RebindWebsites(store Store) (int, error) {
	bindings, err := store.AllBindings()
	if err != nil {
		return 0, err
	}

	bound := 0
	for i := range bindings {
		b := &bindings[i]
		if b.CertificateID != nil {
			continue
		}
		rec, err := findCertificateForDomain(store, b.Domain)
		if err != nil {
			return bound, err
		}
		if rec == nil {
			continue
		}
		b.CertificateID = &rec.ID
		if err := store.UpdateBinding(b); err != nil {
			slog.Warn("rebinding website", "domain", b.Domain, "error", err)
			continue
		}
		bound++
	}
	return bound, nil
}

// findCertificateForDomain returns the newest unexpired leaf certificate
// whose names cover the domain, or nil when none matches.
func findCertificateForDomain(store Store, domain string) (*CertificateRecord, error) {
	certs, err := store.AllCertificates()
	if err != nil {
		return nil, err
	}

	var best *CertificateRecord
	for i := range certs {
		rec := &certs[i]
		if rec.Class != ClassLeaf || rec.Expired {
			continue
		}
		if !certvault.HostMatchesCert(domain, rec.SANs(), rec.Name) {
			continue
		}
		if best == nil || rec.NotAfter.After(best.NotAfter) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

package vaultstore

import (
	"log/slog"
	"time"
)

// ReconcileExpiry refreshes the stored expired flag of every certificate
// against the clock. Returns the number of records whose flag changed.
// The flag is denormalized so listings can filter on it without parsing
// dates, which means it drifts as time passes; this brings it back in sync.
func ReconcileExpiry(store Store) (int, error) {
	certs, err := store.AllCertificates()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	changed := 0
	for _, cert := range certs {
		expired := now.After(cert.NotAfter)
		if expired == cert.Expired {
			continue
		}
		if err := store.SetExpired(cert.ID, expired); err != nil {
			slog.Warn("updating expired flag", "cert", cert.ID, "error", err)
			continue
		}
		changed++
	}

	if changed > 0 {
		slog.Info("reconciled certificate expiry", "changed", changed)
	}
	return changed, nil
}

package vaultstore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// maxChainDepth bounds every upward chain walk. Genuine chains are a
// handful of certificates deep; anything past this is a linking defect.
const maxChainDepth = 32

// LinkIntegrityError reports that linking a certificate would create a
// parent cycle. The offending link has already been rolled back when the
// error is returned.
type LinkIntegrityError struct {
	CertID int64
	Path   []int64
}

func (e *LinkIntegrityError) Error() string {
	return fmt.Sprintf("linking certificate %d would create a chain cycle (path %v)", e.CertID, e.Path)
}

// Linker wires certificates into issuance chains by relationship hash:
// a certificate's parent is a stored certificate whose subject hash equals
// its issuer hash. Linking also adopts existing orphans whose issuer hash
// matches the new certificate's subject hash.
type Linker struct {
	store Store

	// Writes racing on the same distinguished name must not interleave,
	// so link operations lock the subject and issuer hash they touch.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLinker returns a Linker over the given store.
func NewLinker(store Store) *Linker {
	return &Linker{store: store, locks: make(map[string]*sync.Mutex)}
}

func (l *Linker) hashLock(hash string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[hash]
	if !ok {
		m = &sync.Mutex{}
		l.locks[hash] = m
	}
	return m
}

// lockHashes acquires the per-hash locks in sorted order so two link
// operations touching the same pair of names cannot deadlock.
func (l *Linker) lockHashes(hashes ...string) func() {
	uniq := make([]string, 0, len(hashes))
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			uniq = append(uniq, h)
		}
	}
	sort.Strings(uniq)

	locked := make([]*sync.Mutex, 0, len(uniq))
	for _, h := range uniq {
		m := l.hashLock(h)
		m.Lock()
		locked = append(locked, m)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// Link integrates one certificate into the chain graph. It finds the
// certificate's parent (unless it is self-referential), adopts orphaned
// children, and verifies the resulting upward walk is acyclic. A detected
// cycle is unlinked before returning a LinkIntegrityError.
func (l *Linker) Link(certID int64) error {
	cert, err := l.store.CertificateByID(certID)
	if err != nil {
		return err
	}

	unlock := l.lockHashes(cert.SubjectHash, cert.IssuerHash)
	defer unlock()

	if !cert.SelfReferential() {
		if err := l.linkParent(cert); err != nil {
			return err
		}
	}
	if err := l.adoptChildren(cert); err != nil {
		return err
	}
	return l.verifyAcyclic(cert.ID)
}

// linkParent points the certificate at a stored certificate whose subject
// hash matches its issuer hash. The certificate itself is excluded by ID,
// which keeps cross-signed certificates with identical names linkable.
func (l *Linker) linkParent(cert *CertificateRecord) error {
	candidates, err := l.store.CertificatesBySubjectHash(cert.IssuerHash)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		if candidate.ID == cert.ID {
			continue
		}
		parentID := candidate.ID
		if err := l.store.SetParent(cert.ID, &parentID); err != nil {
			return err
		}
		slog.Debug("linked certificate to parent", "cert", cert.ID, "parent", parentID)
		return nil
	}
	return nil
}

// adoptChildren claims stored certificates that were waiting for this
// issuer. Only parentless children are adopted, so an issuer arriving late
// heals its orphans without stealing children from an equivalent issuer
// that arrived first.
func (l *Linker) adoptChildren(cert *CertificateRecord) error {
	children, err := l.store.CertificatesByIssuerHash(cert.SubjectHash)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.ID == cert.ID || child.SelfReferential() || child.ParentID != nil {
			continue
		}
		parentID := cert.ID
		if err := l.store.SetParent(child.ID, &parentID); err != nil {
			return err
		}
		slog.Debug("adopted orphan certificate", "cert", child.ID, "parent", cert.ID)
	}
	return nil
}

// verifyAcyclic walks upward from the certificate. If the walk revisits a
// node or exceeds the depth bound, the certificate's own parent link is
// removed and the cycle reported.
func (l *Linker) verifyAcyclic(certID int64) error {
	seen := make(map[int64]bool)
	path := []int64{}
	current := certID
	for depth := 0; depth <= maxChainDepth; depth++ {
		if seen[current] {
			path = append(path, current)
			if err := l.store.SetParent(certID, nil); err != nil {
				return err
			}
			slog.Warn("unlinked certificate to break chain cycle", "cert", certID, "path", path)
			return &LinkIntegrityError{CertID: certID, Path: path}
		}
		seen[current] = true
		path = append(path, current)

		rec, err := l.store.CertificateByID(current)
		if err != nil {
			return err
		}
		if rec.ParentID == nil {
			return nil
		}
		current = *rec.ParentID
	}

	if err := l.store.SetParent(certID, nil); err != nil {
		return err
	}
	slog.Warn("unlinked certificate exceeding chain depth bound", "cert", certID, "depth", maxChainDepth)
	return &LinkIntegrityError{CertID: certID, Path: path}
}

// LinkBatch links a set of certificates ingested together. Certificates
// are processed in ID order so results do not depend on upload order
// within the batch, and each failure is reported without aborting the
// rest of the batch.
func (l *Linker) LinkBatch(certIDs []int64) []error {
	sorted := append([]int64{}, certIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var errs []error
	for _, id := range sorted {
		if err := l.Link(id); err != nil {
			slog.Warn("linking certificate", "cert", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Relink rebuilds every parent link from scratch. Used after bulk deletes
// or database restores where stale links may remain.
func (l *Linker) Relink() error {
	certs, err := l.store.AllCertificates()
	if err != nil {
		return err
	}
	for _, cert := range certs {
		if err := l.store.SetParent(cert.ID, nil); err != nil {
			return err
		}
	}
	for _, cert := range certs {
		if err := l.Link(cert.ID); err != nil {
			slog.Warn("relinking certificate", "cert", cert.ID, "error", err)
		}
	}
	return nil
}

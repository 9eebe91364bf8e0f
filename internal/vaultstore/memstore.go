package vaultstore

import (
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by tests and by short-lived
// single-shot commands that never need a database file. Safe for
// concurrent use.
type MemStore struct {
	mu sync.RWMutex

	nextCertID int64
	nextKeyID  int64
	nextBindID int64

	certs    map[int64]*CertificateRecord
	keys     map[int64]*KeyRecord
	bindings map[int64]*WebsiteBinding

	certByContentHash map[string]int64
	keyByKeyHash      map[string]int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		certs:             make(map[int64]*CertificateRecord),
		keys:              make(map[int64]*KeyRecord),
		bindings:          make(map[int64]*WebsiteBinding),
		certByContentHash: make(map[string]int64),
		keyByKeyHash:      make(map[string]int64),
	}
}

func (s *MemStore) SaveCertificate(rec *CertificateRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certByContentHash[rec.ContentHash]; exists {
		return 0, ErrDuplicateCertificate
	}
	s.nextCertID++
	rec.ID = s.nextCertID
	clone := *rec
	s.certs[rec.ID] = &clone
	s.certByContentHash[rec.ContentHash] = rec.ID
	return rec.ID, nil
}

func (s *MemStore) CertificateByID(id int64) (*CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.certs[id]
	if !ok {
		return nil, ErrCertNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *MemStore) CertificateByContentHash(hash string) (*CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.certByContentHash[hash]
	if !ok {
		return nil, ErrCertNotFound
	}
	clone := *s.certs[id]
	return &clone, nil
}

func (s *MemStore) CertificatesBySubjectHash(hash string) ([]CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CertificateRecord
	for _, rec := range s.certs {
		if rec.SubjectHash == hash {
			out = append(out, *rec)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemStore) CertificatesByIssuerHash(hash string) ([]CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CertificateRecord
	for _, rec := range s.certs {
		if rec.IssuerHash == hash {
			out = append(out, *rec)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemStore) AllCertificates() ([]CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CertificateRecord, 0, len(s.certs))
	for _, rec := range s.certs {
		out = append(out, *rec)
	}
	sortByID(out)
	return out, nil
}

func (s *MemStore) SetParent(certID int64, parentID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[certID]
	if !ok {
		return ErrCertNotFound
	}
	if parentID == nil {
		rec.ParentID = nil
		return nil
	}
	p := *parentID
	rec.ParentID = &p
	return nil
}

func (s *MemStore) SetExpired(certID int64, expired bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[certID]
	if !ok {
		return ErrCertNotFound
	}
	rec.Expired = expired
	return nil
}

func (s *MemStore) DeleteCertificate(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[id]
	if !ok {
		return ErrCertNotFound
	}
	delete(s.certByContentHash, rec.ContentHash)
	delete(s.certs, id)
	// Children of a deleted certificate become orphans again.
	for _, c := range s.certs {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
		}
	}
	for _, k := range s.keys {
		if k.CertificateID != nil && *k.CertificateID == id {
			k.CertificateID = nil
		}
	}
	return nil
}

func (s *MemStore) SaveKey(rec *KeyRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keyByKeyHash[rec.KeyHash]; exists {
		return 0, ErrDuplicateKey
	}
	s.nextKeyID++
	rec.ID = s.nextKeyID
	clone := *rec
	s.keys[rec.ID] = &clone
	s.keyByKeyHash[rec.KeyHash] = rec.ID
	return rec.ID, nil
}

func (s *MemStore) KeyByID(id int64) (*KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *MemStore) KeyByKeyHash(hash string) (*KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keyByKeyHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *s.keys[id]
	return &clone, nil
}

func (s *MemStore) KeyForCertificate(certID int64) (*KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.keys {
		if rec.CertificateID != nil && *rec.CertificateID == certID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemStore) AllKeys() ([]KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyRecord, 0, len(s.keys))
	for _, rec := range s.keys {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) BindKeyToCertificate(keyID, certID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if _, ok := s.certs[certID]; !ok {
		return ErrCertNotFound
	}
	id := certID
	rec.CertificateID = &id
	return nil
}

func (s *MemStore) DeleteKey(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	delete(s.keyByKeyHash, rec.KeyHash)
	delete(s.keys, id)
	return nil
}

func (s *MemStore) SaveBinding(b *WebsiteBinding) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBindID++
	b.ID = s.nextBindID
	clone := *b
	s.bindings[b.ID] = &clone
	return b.ID, nil
}

func (s *MemStore) UpdateBinding(b *WebsiteBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[b.ID]; !ok {
		return ErrCertNotFound
	}
	clone := *b
	s.bindings[b.ID] = &clone
	return nil
}

func (s *MemStore) BindingsForCertificate(certID int64) ([]WebsiteBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []WebsiteBinding
	for _, b := range s.bindings {
		if b.CertificateID != nil && *b.CertificateID == certID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) AllBindings() ([]WebsiteBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WebsiteBinding, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Close() error { return nil }

func sortByID(recs []CertificateRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

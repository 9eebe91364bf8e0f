package vaultstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cerbyon/certvault"
)

// ErrStagedNotFound is returned when a staging token is unknown, expired,
// or already consumed.
var ErrStagedNotFound = errors.New("staged upload not found or expired")

// StagedUpload is an upload held in memory between preview and commit.
// The raw bytes stay out of the store until the caller confirms them.
type StagedUpload struct {
	Token      string
	Filename   string
	Format     certvault.Format
	Data       []byte
	Passphrase string
	ExpiresAt  time.Time
}

// Staging holds pending uploads with a fixed time to live. Entries are
// consumed exactly once; expired entries are dropped lazily on access.
type Staging struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]*StagedUpload
}

// NewStaging returns a staging area whose entries live for ttl.
func NewStaging(ttl time.Duration) *Staging {
	return &Staging{ttl: ttl, entries: make(map[string]*StagedUpload)}
}

// Put stages an upload and returns its token.
func (s *Staging) Put(filename string, format certvault.Format, data []byte, passphrase string) (string, error) {
	token, err := newStagingToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredLocked()
	s.entries[token] = &StagedUpload{
		Token:      token,
		Filename:   filename,
		Format:     format,
		Data:       data,
		Passphrase: passphrase,
		ExpiresAt:  time.Now().Add(s.ttl),
	}
	return token, nil
}

// Peek returns a staged upload without consuming it.
func (s *Staging) Peek(token string) (*StagedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredLocked()
	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrStagedNotFound
	}
	return entry, nil
}

// Take consumes a staged upload. A second Take with the same token fails.
func (s *Staging) Take(token string) (*StagedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredLocked()
	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrStagedNotFound
	}
	delete(s.entries, token)
	return entry, nil
}

// Discard removes a staged upload without ingesting it.
func (s *Staging) Discard(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// Len reports the number of live staged uploads.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredLocked()
	return len(s.entries)
}

func (s *Staging) dropExpiredLocked() {
	now := time.Now()
	for token, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, token)
		}
	}
}

func newStagingToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating staging token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package vaultstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store implementation. All operations run
// against an in-memory database for speed; SaveToDisk and LoadFromDisk
// move the data to and from a database file.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite creates an initialized in-memory SQLite store.
func OpenSQLite() (*SQLiteStore, error) {
	// Pin to a single connection. Each :memory: connection is a separate
	// database, so connection pooling must be disabled. PRAGMAs are set via
	// the DSN so they apply automatically to reconnections.
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("database initialized")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []struct {
		what string
		sql  string
	}{
		{"certificates table", `
			CREATE TABLE IF NOT EXISTS certificates (
				id                  INTEGER PRIMARY KEY AUTOINCREMENT,
				name                text NOT NULL,
				subject             text NOT NULL,
				issuer              text NOT NULL,
				serial_number       text NOT NULL,
				not_before          timestamp,
				not_after           timestamp,
				expired             boolean NOT NULL DEFAULT 0,
				signature_algorithm text,
				public_key          text,
				sans                text,
				class               text NOT NULL,
				content_hash        text NOT NULL UNIQUE,
				subject_hash        text NOT NULL,
				issuer_hash         text NOT NULL,
				parent_id           integer REFERENCES certificates(id),
				format              text,
				original_filename   text,
				pem                 blob NOT NULL,
				trusted_root        boolean NOT NULL DEFAULT 0
			);
		`},
		{"subject hash index", `
			CREATE INDEX IF NOT EXISTS idx_certificates_subject_hash ON certificates (subject_hash);
		`},
		{"issuer hash index", `
			CREATE INDEX IF NOT EXISTS idx_certificates_issuer_hash ON certificates (issuer_hash);
		`},
		{"keys table", `
			CREATE TABLE IF NOT EXISTS keys (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				name              text NOT NULL,
				key_hash          text NOT NULL UNIQUE,
				algorithm         text,
				bit_length        integer,
				sealed_key        blob NOT NULL,
				certificate_id    integer UNIQUE REFERENCES certificates(id),
				original_filename text,
				format            text
			);
		`},
		{"bindings table", `
			CREATE TABLE IF NOT EXISTS website_bindings (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				url            text NOT NULL,
				domain         text NOT NULL,
				certificate_id integer REFERENCES certificates(id)
			);
		`},
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("creating %s: %w", stmt.what, err)
		}
	}
	return nil
}

// SaveToDisk writes the in-memory database to a file at the given path.
// Uses VACUUM INTO which produces a clean, compact copy in a single operation.
func (s *SQLiteStore) SaveToDisk(path string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("saving database to %s: %w", path, err)
	}
	slog.Info("database saved to disk", "path", path)
	return nil
}

// LoadFromDisk copies certificates, keys, and bindings from an on-disk
// database into the in-memory database. The file is read once and detached.
func (s *SQLiteStore) LoadFromDisk(path string) error {
	if _, err := s.db.Exec("ATTACH DATABASE ? AS diskdb", path); err != nil {
		return fmt.Errorf("attaching database %s: %w", path, err)
	}
	defer func() {
		if _, err := s.db.Exec("DETACH DATABASE diskdb"); err != nil {
			slog.Warn("detaching database", "path", path, "error", err)
		}
	}()

	for _, table := range []string{"certificates", "keys", "website_bindings"} {
		if _, err := s.db.Exec(fmt.Sprintf("INSERT OR IGNORE INTO %s SELECT * FROM diskdb.%s", table, table)); err != nil {
			return fmt.Errorf("loading %s from %s: %w", table, path, err)
		}
	}

	slog.Info("database loaded from disk", "path", path)
	return nil
}

func (s *SQLiteStore) SaveCertificate(rec *CertificateRecord) (int64, error) {
	var existing int
	if err := s.db.Get(&existing, "SELECT COUNT(*) FROM certificates WHERE content_hash = ?", rec.ContentHash); err != nil {
		return 0, fmt.Errorf("checking for duplicate certificate: %w", err)
	}
	if existing > 0 {
		return 0, ErrDuplicateCertificate
	}

	res, err := s.db.NamedExec(`
		INSERT INTO certificates (name, subject, issuer, serial_number, not_before, not_after, expired,
			signature_algorithm, public_key, sans, class, content_hash, subject_hash, issuer_hash,
			parent_id, format, original_filename, pem, trusted_root)
		VALUES (:name, :subject, :issuer, :serial_number, :not_before, :not_after, :expired,
			:signature_algorithm, :public_key, :sans, :class, :content_hash, :subject_hash, :issuer_hash,
			:parent_id, :format, :original_filename, :pem, :trusted_root)
	`, rec)
	if err != nil {
		return 0, fmt.Errorf("inserting certificate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading certificate id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (s *SQLiteStore) CertificateByID(id int64) (*CertificateRecord, error) {
	var rec CertificateRecord
	err := s.db.Get(&rec, "SELECT * FROM certificates WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCertNotFound
		}
		return nil, fmt.Errorf("getting certificate %d: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) CertificateByContentHash(hash string) (*CertificateRecord, error) {
	var rec CertificateRecord
	err := s.db.Get(&rec, "SELECT * FROM certificates WHERE content_hash = ?", hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCertNotFound
		}
		return nil, fmt.Errorf("getting certificate by content hash: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) CertificatesBySubjectHash(hash string) ([]CertificateRecord, error) {
	var recs []CertificateRecord
	if err := s.db.Select(&recs, "SELECT * FROM certificates WHERE subject_hash = ? ORDER BY id", hash); err != nil {
		return nil, fmt.Errorf("getting certificates by subject hash: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) CertificatesByIssuerHash(hash string) ([]CertificateRecord, error) {
	var recs []CertificateRecord
	if err := s.db.Select(&recs, "SELECT * FROM certificates WHERE issuer_hash = ? ORDER BY id", hash); err != nil {
		return nil, fmt.Errorf("getting certificates by issuer hash: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) AllCertificates() ([]CertificateRecord, error) {
	var recs []CertificateRecord
	if err := s.db.Select(&recs, "SELECT * FROM certificates ORDER BY id"); err != nil {
		return nil, fmt.Errorf("getting all certificates: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) SetParent(certID int64, parentID *int64) error {
	res, err := s.db.Exec("UPDATE certificates SET parent_id = ? WHERE id = ?", parentID, certID)
	if err != nil {
		return fmt.Errorf("setting parent of certificate %d: %w", certID, err)
	}
	return checkAffected(res, ErrCertNotFound)
}

func (s *SQLiteStore) SetExpired(certID int64, expired bool) error {
	res, err := s.db.Exec("UPDATE certificates SET expired = ? WHERE id = ?", expired, certID)
	if err != nil {
		return fmt.Errorf("setting expired flag of certificate %d: %w", certID, err)
	}
	return checkAffected(res, ErrCertNotFound)
}

func (s *SQLiteStore) DeleteCertificate(id int64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec("DELETE FROM certificates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting certificate %d: %w", id, err)
	}
	if err := checkAffected(res, ErrCertNotFound); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE certificates SET parent_id = NULL WHERE parent_id = ?", id); err != nil {
		return fmt.Errorf("orphaning children of certificate %d: %w", id, err)
	}
	if _, err := tx.Exec("UPDATE keys SET certificate_id = NULL WHERE certificate_id = ?", id); err != nil {
		return fmt.Errorf("unbinding keys of certificate %d: %w", id, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveKey(rec *KeyRecord) (int64, error) {
	var existing int
	if err := s.db.Get(&existing, "SELECT COUNT(*) FROM keys WHERE key_hash = ?", rec.KeyHash); err != nil {
		return 0, fmt.Errorf("checking for duplicate key: %w", err)
	}
	if existing > 0 {
		return 0, ErrDuplicateKey
	}

	res, err := s.db.NamedExec(`
		INSERT INTO keys (name, key_hash, algorithm, bit_length, sealed_key, certificate_id, original_filename, format)
		VALUES (:name, :key_hash, :algorithm, :bit_length, :sealed_key, :certificate_id, :original_filename, :format)
	`, rec)
	if err != nil {
		return 0, fmt.Errorf("inserting key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading key id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (s *SQLiteStore) KeyByID(id int64) (*KeyRecord, error) {
	var rec KeyRecord
	err := s.db.Get(&rec, "SELECT * FROM keys WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("getting key %d: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) KeyByKeyHash(hash string) (*KeyRecord, error) {
	var rec KeyRecord
	err := s.db.Get(&rec, "SELECT * FROM keys WHERE key_hash = ?", hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("getting key by hash: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) KeyForCertificate(certID int64) (*KeyRecord, error) {
	var rec KeyRecord
	err := s.db.Get(&rec, "SELECT * FROM keys WHERE certificate_id = ?", certID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("getting key for certificate %d: %w", certID, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) AllKeys() ([]KeyRecord, error) {
	var recs []KeyRecord
	if err := s.db.Select(&recs, "SELECT * FROM keys ORDER BY id"); err != nil {
		return nil, fmt.Errorf("getting all keys: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) BindKeyToCertificate(keyID, certID int64) error {
	res, err := s.db.Exec("UPDATE keys SET certificate_id = ? WHERE id = ?", certID, keyID)
	if err != nil {
		return fmt.Errorf("binding key %d to certificate %d: %w", keyID, certID, err)
	}
	return checkAffected(res, ErrKeyNotFound)
}

func (s *SQLiteStore) DeleteKey(id int64) error {
	res, err := s.db.Exec("DELETE FROM keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting key %d: %w", id, err)
	}
	return checkAffected(res, ErrKeyNotFound)
}

func (s *SQLiteStore) SaveBinding(b *WebsiteBinding) (int64, error) {
	res, err := s.db.NamedExec(`
		INSERT INTO website_bindings (url, domain, certificate_id)
		VALUES (:url, :domain, :certificate_id)
	`, b)
	if err != nil {
		return 0, fmt.Errorf("inserting website binding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading binding id: %w", err)
	}
	b.ID = id
	return id, nil
}

func (s *SQLiteStore) UpdateBinding(b *WebsiteBinding) error {
	res, err := s.db.NamedExec(`
		UPDATE website_bindings SET url = :url, domain = :domain, certificate_id = :certificate_id
		WHERE id = :id
	`, b)
	if err != nil {
		return fmt.Errorf("updating website binding %d: %w", b.ID, err)
	}
	return checkAffected(res, ErrCertNotFound)
}

func (s *SQLiteStore) BindingsForCertificate(certID int64) ([]WebsiteBinding, error) {
	var out []WebsiteBinding
	if err := s.db.Select(&out, "SELECT * FROM website_bindings WHERE certificate_id = ? ORDER BY id", certID); err != nil {
		return nil, fmt.Errorf("getting bindings for certificate %d: %w", certID, err)
	}
	return out, nil
}

func (s *SQLiteStore) AllBindings() ([]WebsiteBinding, error) {
	var out []WebsiteBinding
	if err := s.db.Select(&out, "SELECT * FROM website_bindings ORDER BY id"); err != nil {
		return nil, fmt.Errorf("getting all bindings: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

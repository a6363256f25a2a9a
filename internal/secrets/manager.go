package secrets

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
)

// ErrWrongPassphrase is returned when the configured passphrase does not
// match the one the database was initialized with.
var ErrWrongPassphrase = errors.New("wrong secrets passphrase")

// Manager derives the encryption key at startup and encrypts or decrypts
// individual credential fields. The salt and verification blob live in a
// single-row table so the same database always yields the same key for
// the same passphrase. Safe for concurrent use after Open.
type Manager struct {
	mu  sync.RWMutex
	key []byte // nil until Open succeeds
}

// NewManager creates a Manager with no key material loaded.
func NewManager() *Manager {
	return &Manager{}
}

// Open loads or initializes the key record and derives the field key.
// On first run it generates a salt, derives the key, and persists the
// salt with a verification blob. On later runs it verifies the derived
// key against the stored blob and fails with ErrWrongPassphrase on
// mismatch.
func (m *Manager) Open(ctx context.Context, db *sql.DB, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS secrets_keyring (
			id           INTEGER  PRIMARY KEY CHECK (id = 1),
			salt         BLOB     NOT NULL,
			verification BLOB     NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ensure keyring table: %w", err)
	}

	var salt, verification []byte
	err := db.QueryRowContext(ctx,
		"SELECT salt, verification FROM secrets_keyring WHERE id = 1",
	).Scan(&salt, &verification)

	switch {
	case err == sql.ErrNoRows:
		salt, err = GenerateSalt()
		if err != nil {
			return err
		}
		key := DeriveKey(passphrase, salt)
		verification, err = CreateVerificationBlob(key)
		if err != nil {
			ZeroBytes(key)
			return err
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO secrets_keyring (id, salt, verification) VALUES (1, ?, ?)",
			salt, verification,
		); err != nil {
			ZeroBytes(key)
			return fmt.Errorf("persist keyring: %w", err)
		}
		m.key = key
		return nil

	case err != nil:
		return fmt.Errorf("load keyring: %w", err)
	}

	key := DeriveKey(passphrase, salt)
	if !VerifyKey(key, verification) {
		ZeroBytes(key)
		return ErrWrongPassphrase
	}
	m.key = key
	return nil
}

// Close zeroes the key and removes it from memory.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		ZeroBytes(m.key)
		m.key = nil
	}
}

// EncryptString encrypts a plaintext field value and returns it
// base64-encoded for storage in a TEXT column. Empty input stays empty
// so optional credential fields round-trip as-is.
func (m *Manager) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return "", errors.New("secrets manager not opened")
	}

	ct, err := encrypt(m.key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptString reverses EncryptString.
func (m *Manager) DecryptString(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return "", errors.New("secrets manager not opened")
	}

	ct, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode stored secret: %w", err)
	}
	plain, err := decrypt(m.key, ct)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

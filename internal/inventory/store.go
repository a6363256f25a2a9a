package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/merliyatf/delfin/pkg/models"
)

// secretCipher is the encryption surface the store consumes. Satisfied by
// *secrets.Manager.
type secretCipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(stored string) (string, error)
}

// StorageStore persists storage array records. Credential columns are
// encrypted on write and decrypted on single-record reads; List never
// returns credentials.
type StorageStore struct {
	db     *sql.DB
	cipher secretCipher
}

// NewStorageStore creates a storage store backed by the given database.
func NewStorageStore(db *sql.DB, cipher secretCipher) *StorageStore {
	return &StorageStore{db: db, cipher: cipher}
}

// Create inserts a new storage record. Timestamps are set here.
func (s *StorageStore) Create(ctx context.Context, st *models.Storage) error {
	sshPass, err := s.cipher.EncryptString(st.SSHPassword)
	if err != nil {
		return fmt.Errorf("encrypt ssh credential: %w", err)
	}
	restPass, err := s.cipher.EncryptString(st.RESTPassword)
	if err != nil {
		return fmt.Errorf("encrypt rest credential: %w", err)
	}

	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO storages (
			id, name, vendor, model, serial_number, firmware,
			ssh_host, ssh_port, ssh_username, ssh_password,
			rest_host, rest_port, rest_username, rest_password,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Vendor, st.Model, st.SerialNumber, st.Firmware,
		st.SSHHost, st.SSHPort, st.SSHUsername, sshPass,
		st.RESTHost, st.RESTPort, st.RESTUsername, restPass,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert storage: %w", err)
	}
	return nil
}

// Get returns one storage with decrypted credentials, or (nil, nil) when no
// record exists.
func (s *StorageStore) Get(ctx context.Context, id string) (*models.Storage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, vendor, model, serial_number, firmware,
			ssh_host, ssh_port, ssh_username, ssh_password,
			rest_host, rest_port, rest_username, rest_password,
			created_at, updated_at
		FROM storages WHERE id = ?`, id)

	var st models.Storage
	var sshPass, restPass string
	err := row.Scan(
		&st.ID, &st.Name, &st.Vendor, &st.Model, &st.SerialNumber, &st.Firmware,
		&st.SSHHost, &st.SSHPort, &st.SSHUsername, &sshPass,
		&st.RESTHost, &st.RESTPort, &st.RESTUsername, &restPass,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get storage: %w", err)
	}

	if st.SSHPassword, err = s.cipher.DecryptString(sshPass); err != nil {
		return nil, fmt.Errorf("decrypt ssh credential: %w", err)
	}
	if st.RESTPassword, err = s.cipher.DecryptString(restPass); err != nil {
		return nil, fmt.Errorf("decrypt rest credential: %w", err)
	}
	return &st, nil
}

// List returns all storages ordered by name. Credential fields are left
// empty; callers that need them use Get.
func (s *StorageStore) List(ctx context.Context) ([]models.Storage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, vendor, model, serial_number, firmware,
			ssh_host, ssh_port, ssh_username,
			rest_host, rest_port, rest_username,
			created_at, updated_at
		FROM storages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list storages: %w", err)
	}
	defer rows.Close()

	var storages []models.Storage
	for rows.Next() {
		var st models.Storage
		if err := rows.Scan(
			&st.ID, &st.Name, &st.Vendor, &st.Model, &st.SerialNumber, &st.Firmware,
			&st.SSHHost, &st.SSHPort, &st.SSHUsername,
			&st.RESTHost, &st.RESTPort, &st.RESTUsername,
			&st.CreatedAt, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan storage: %w", err)
		}
		storages = append(storages, st)
	}
	return storages, rows.Err()
}

// Delete removes a storage record. Returns false when no record existed.
func (s *StorageStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM storages WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete storage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete storage: %w", err)
	}
	return n > 0, nil
}

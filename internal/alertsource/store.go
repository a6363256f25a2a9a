package alertsource

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

// AlertSourceStore persists trap-forwarding configuration, one row per
// storage. The secret columns (community_string, auth_key, privacy_key) are
// encrypted on write and decrypted on read; everything outside this store
// works with plaintext.
type AlertSourceStore struct {
	db     *sql.DB
	cipher secretCipher
}

// NewAlertSourceStore creates an alert source store.
func NewAlertSourceStore(db *sql.DB, cipher secretCipher) *AlertSourceStore {
	return &AlertSourceStore{db: db, cipher: cipher}
}

// Upsert writes the configuration for a storage, replacing any previous row.
func (s *AlertSourceStore) Upsert(ctx context.Context, src *models.AlertSource) error {
	community, err := s.cipher.EncryptString(src.CommunityString)
	if err != nil {
		return fmt.Errorf("encrypt community string: %w", err)
	}
	authKey, err := s.cipher.EncryptString(src.AuthKey)
	if err != nil {
		return fmt.Errorf("encrypt auth key: %w", err)
	}
	privKey, err := s.cipher.EncryptString(src.PrivacyKey)
	if err != nil {
		return fmt.Errorf("encrypt privacy key: %w", err)
	}

	now := time.Now().UTC()
	src.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_sources (
			storage_id, version, host, port,
			community_string, username, security_level, engine_id,
			auth_protocol, auth_key, privacy_protocol, privacy_key,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(storage_id) DO UPDATE SET
			version = excluded.version,
			host = excluded.host,
			port = excluded.port,
			community_string = excluded.community_string,
			username = excluded.username,
			security_level = excluded.security_level,
			engine_id = excluded.engine_id,
			auth_protocol = excluded.auth_protocol,
			auth_key = excluded.auth_key,
			privacy_protocol = excluded.privacy_protocol,
			privacy_key = excluded.privacy_key,
			updated_at = excluded.updated_at`,
		src.StorageID, string(src.Version), src.Host, src.Port,
		community, src.Username, string(src.SecurityLevel), src.EngineID,
		src.AuthProtocol, authKey, src.PrivacyProtocol, privKey,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert alert source: %w", err)
	}
	return nil
}

// Get returns the configuration for a storage with decrypted secrets, or
// (nil, nil) when none is configured. Absence is a value, not an error.
func (s *AlertSourceStore) Get(ctx context.Context, storageID string) (*models.AlertSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT storage_id, version, host, port,
			community_string, username, security_level, engine_id,
			auth_protocol, auth_key, privacy_protocol, privacy_key,
			created_at, updated_at
		FROM alert_sources WHERE storage_id = ?`, storageID)

	var src models.AlertSource
	var version, secLevel string
	var community, authKey, privKey string
	err := row.Scan(
		&src.StorageID, &version, &src.Host, &src.Port,
		&community, &src.Username, &secLevel, &src.EngineID,
		&src.AuthProtocol, &authKey, &src.PrivacyProtocol, &privKey,
		&src.CreatedAt, &src.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert source: %w", err)
	}
	src.Version = models.SNMPVersion(version)
	src.SecurityLevel = models.SecurityLevel(secLevel)

	if src.CommunityString, err = s.cipher.DecryptString(community); err != nil {
		return nil, fmt.Errorf("decrypt community string: %w", err)
	}
	if src.AuthKey, err = s.cipher.DecryptString(authKey); err != nil {
		return nil, fmt.Errorf("decrypt auth key: %w", err)
	}
	if src.PrivacyKey, err = s.cipher.DecryptString(privKey); err != nil {
		return nil, fmt.Errorf("decrypt privacy key: %w", err)
	}
	return &src, nil
}

// GetBrief returns the minimal trap identity for a storage without touching
// the secret columns, or (nil, nil) when none is configured.
func (s *AlertSourceStore) GetBrief(ctx context.Context, storageID string) (*models.TrapConfigBrief, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT storage_id, version, host, username, engine_id
		FROM alert_sources WHERE storage_id = ?`, storageID)

	var b models.TrapConfigBrief
	var version string
	err := row.Scan(&b.StorageID, &version, &b.Host, &b.Username, &b.EngineID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert source brief: %w", err)
	}
	b.Version = models.SNMPVersion(version)
	if b.Version != models.SNMPv3 {
		b.Username, b.EngineID = "", ""
	}
	return &b, nil
}

// ListStorageIDs returns every storage that has an alert source configured.
// The poller uses this to decide which arrays to poll.
func (s *AlertSourceStore) ListStorageIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storage_id FROM alert_sources ORDER BY storage_id`)
	if err != nil {
		return nil, fmt.Errorf("list alert sources: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alert source: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the configuration for a storage. Returns false when no row
// existed.
func (s *AlertSourceStore) Delete(ctx context.Context, storageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alert_sources WHERE storage_id = ?`, storageID)
	if err != nil {
		return false, fmt.Errorf("delete alert source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete alert source: %w", err)
	}
	return n > 0, nil
}

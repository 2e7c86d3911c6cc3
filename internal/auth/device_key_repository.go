package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DeviceKeyRepository persists device pairing codes.
type DeviceKeyRepository interface {
	Upsert(ctx context.Context, key *DeviceKey) error
	GetByCode(ctx context.Context, code string) (*DeviceKey, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteDeviceKeyRepository implements DeviceKeyRepository using SQLite.
type SQLiteDeviceKeyRepository struct {
	db *sql.DB
}

// NewDeviceKeyRepository creates a new SQLite-backed device key repository.
func NewDeviceKeyRepository(db *sql.DB) *SQLiteDeviceKeyRepository {
	return &SQLiteDeviceKeyRepository{db: db}
}

// Upsert stores a device's pairing code, replacing any previous code for the
// same device. A code already held by another device is rejected.
func (r *SQLiteDeviceKeyRepository) Upsert(ctx context.Context, key *DeviceKey) error {
	now := time.Now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_keys (device_id, code, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET code = excluded.code`,
		key.DeviceID, key.Code, now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDeviceKeyConflict, key.DeviceID)
		}
		return fmt.Errorf("storing device key: %w", err)
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	return nil
}

// GetByCode resolves a pairing code to its device.
func (r *SQLiteDeviceKeyRepository) GetByCode(ctx context.Context, code string) (*DeviceKey, error) {
	var k DeviceKey
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT device_id, code, created_at FROM device_keys WHERE code = ?", code,
	).Scan(&k.DeviceID, &k.Code, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceKeyNotFound
		}
		return nil, fmt.Errorf("looking up device key: %w", err)
	}
	k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &k, nil
}

// Count returns the number of provisioned device keys.
func (r *SQLiteDeviceKeyRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM device_keys").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting device keys: %w", err)
	}
	return count, nil
}

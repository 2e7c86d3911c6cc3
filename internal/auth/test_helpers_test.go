package auth

import (
	"database/sql"
	"testing"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/database"
	_ "github.com/nerrad567/phaselink-core/migrations" // registers the account schema
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

// testDB opens an in-memory database with the account schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// seedTestUser inserts a user with password "test-password" bound to deviceID.
func seedTestUser(t *testing.T, db *sql.DB, username, deviceID string) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{Username: username, DeviceID: deviceID, PasswordHash: hash}
	if err := NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// seedTestKey provisions a pairing code for deviceID.
func seedTestKey(t *testing.T, db *sql.DB, deviceID, code string) {
	t.Helper()

	if err := NewDeviceKeyRepository(db).Upsert(t.Context(), &DeviceKey{DeviceID: deviceID, Code: code}); err != nil {
		t.Fatalf("seeding device key %s: %v", deviceID, err)
	}
}

package auth

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
)

func TestSeedDeviceKeys(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceKeyRepository(db)
	ctx := t.Context()

	keys := []config.DeviceKeyConfig{
		{DeviceID: "meter-01", Code: "AAAA-1111"},
		{DeviceID: " meter-02 ", Code: " BBBB-2222 "},
		{DeviceID: "", Code: "orphan"},
		{DeviceID: "meter-03", Code: ""},
	}

	n, err := SeedDeviceKeys(ctx, repo, keys, slog.Default())
	if err != nil {
		t.Fatalf("SeedDeviceKeys() error = %v", err)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}

	key, err := repo.GetByCode(ctx, "BBBB-2222")
	if err != nil {
		t.Fatalf("GetByCode() error = %v", err)
	}
	if key.DeviceID != "meter-02" {
		t.Errorf("DeviceID = %q, want trimmed meter-02", key.DeviceID)
	}

	// Seeding again is idempotent.
	if _, err := SeedDeviceKeys(ctx, repo, keys, slog.Default()); err != nil {
		t.Fatalf("second SeedDeviceKeys() error = %v", err)
	}
	if count, _ := repo.Count(ctx); count != 2 { //nolint:errcheck // checked via count
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestSeedDeviceKeys_Conflict(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceKeyRepository(db)

	keys := []config.DeviceKeyConfig{
		{DeviceID: "meter-01", Code: "SAME"},
		{DeviceID: "meter-02", Code: "SAME"},
	}

	n, err := SeedDeviceKeys(t.Context(), repo, keys, slog.Default())
	if !errors.Is(err, ErrDeviceKeyConflict) {
		t.Errorf("SeedDeviceKeys() error = %v, want ErrDeviceKeyConflict", err)
	}
	if n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

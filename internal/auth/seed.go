package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
)

// SeedDeviceKeys upserts the pairing codes provisioned in configuration.
// Entries with a blank device ID or code are skipped with a warning.
// Returns the number of keys stored.
func SeedDeviceKeys(ctx context.Context, repo DeviceKeyRepository, keys []config.DeviceKeyConfig, logger *slog.Logger) (int, error) {
	stored := 0
	for i, k := range keys {
		deviceID := strings.TrimSpace(k.DeviceID)
		code := strings.TrimSpace(k.Code)
		if deviceID == "" || code == "" {
			logger.Warn("skipping incomplete device key", "index", i, "device_id", deviceID)
			continue
		}

		if err := repo.Upsert(ctx, &DeviceKey{DeviceID: deviceID, Code: code}); err != nil {
			return stored, fmt.Errorf("seeding device key for %s: %w", deviceID, err)
		}
		stored++
	}

	if stored > 0 {
		logger.Info("device keys provisioned", "count", stored)
	}
	return stored, nil
}

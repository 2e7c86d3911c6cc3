// Package migrations embeds the SQLite schema (accounts, device keys, audit trail) into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Migrations = migrationsFS
}

// Package database provides SQLite connectivity for PhaseLink's account store.
//
// The store holds user accounts and the device key codes used at sign-up.
// Time-series data lives in InfluxDB, not here.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations embedded into the binary
//   - Connection pool and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Passwords are stored as argon2id hashes by the auth package
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied oldest first.
package database

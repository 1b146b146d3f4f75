// Package database provides SQLite connectivity for the preset catalog.
//
// This package manages:
//   - Connections to a database file (WAL mode, busy timeout) or to a
//     private in-memory database
//   - Versioned schema migrations read from a registered filesystem
//   - Health checks for the API
//
// Database files are created with 0600 permissions. All queries use
// parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied oldest first, one transaction each.
package database

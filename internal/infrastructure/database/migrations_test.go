package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// useTestMigrations registers fsys for the duration of the test.
func useTestMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	origFS, origDir := registeredMigrations()
	RegisterMigrations(fsys, ".")
	t.Cleanup(func() { RegisterMigrations(origFS, origDir) })
}

var twoMigrations = fstest.MapFS{
	"20260101_000000_widgets.up.sql": {Data: []byte(
		`CREATE TABLE widgets (id TEXT PRIMARY KEY);`)},
	"20260101_000000_widgets.down.sql": {Data: []byte(
		`DROP TABLE widgets;`)},
	"20260102_000000_gadgets.up.sql": {Data: []byte(
		`CREATE TABLE gadgets (id TEXT PRIMARY KEY);
		 INSERT INTO gadgets (id) VALUES ('g1');`)},
	"20260102_000000_gadgets.down.sql": {Data: []byte(
		`DROP TABLE gadgets;`)},
	"README.md": {Data: []byte("not a migration")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t, twoMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if applied[0].Version != "20260101_000000" {
		t.Errorf("applied[0].Version = %q, want oldest first", applied[0].Version)
	}

	// Idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useTestMigrations(t, twoMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "gadgets") {
		t.Error("gadgets should be dropped by rollback")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("widgets should survive a single rollback")
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "gadgets" {
		t.Errorf("pending = %+v, want only gadgets", pending)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	useTestMigrations(t, fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte(`CREATE TABLE ok_table (id TEXT);`)},
		"20260102_000000_broken.up.sql": {Data: []byte(`CREATE TABLE;`)},
	})
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("migration before the failure should stay committed")
	}
}

func TestMigrate_NoRegisteredFS(t *testing.T) {
	origFS, origDir := registeredMigrations()
	RegisterMigrations(nil, ".")
	t.Cleanup(func() { RegisterMigrations(origFS, origDir) })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_090000_preset_catalog.up.sql", "20260301_090000", "preset_catalog", true, true},
		{"20260301_090000_preset_catalog.down.sql", "20260301_090000", "preset_catalog", false, true},
		{"20260301_090000.up.sql", "20260301_090000", "20260301_090000", true, true},
		{"20260301_090000_x.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
		{"single.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}

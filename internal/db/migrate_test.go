package db

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLatestMigrationVersion(t *testing.T) {
	latest, err := LatestMigrationVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("LatestMigrationVersion: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest = %d, want 2", latest)
	}

	if _, err := LatestMigrationVersion(fstest.MapFS{}); err == nil {
		t.Error("expected error for empty migrations FS")
	}
	bad := fstest.MapFS{"init.up.sql": &fstest.MapFile{Data: []byte("SELECT 1;")}}
	if _, err := LatestMigrationVersion(bad); err == nil {
		t.Error("expected error for unversioned migration names")
	}
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db, _ := setupTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("version = %d dirty = %v, want 2 clean", version, dirty)
	}

	for _, table := range []string{"analysis_runs", "run_aggregates", "skipped_records"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db, _ := setupTestDB(t)
	fsys := MigrationsFS()

	if err := db.MigrateDown(fsys); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	version, _, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}

	var hasConfig int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('analysis_runs') WHERE name = 'config_json'`).Scan(&hasConfig); err != nil {
		t.Fatalf("table_info: %v", err)
	}
	if hasConfig != 0 {
		t.Error("config_json should be dropped by the down migration")
	}

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	// already at latest
	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp (no change): %v", err)
	}
	if err := db.MigrateTo(fsys, 1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	if version, _, _ := db.MigrateVersion(fsys); version != 1 {
		t.Errorf("version after MigrateTo(1) = %d", version)
	}
}

func TestMigrateNilFS(t *testing.T) {
	db, _ := setupTestDB(t)
	if err := db.MigrateUp(nil); err == nil {
		t.Error("expected error for nil migrations FS")
	}
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	var out bytes.Buffer
	if err := RunMigrateCommand([]string{"status"}, path, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 0") || !strings.Contains(out.String(), "2 version(s) behind") {
		t.Errorf("status output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"up"}, path, &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	if !strings.Contains(out.String(), "Database is up to date") {
		t.Errorf("up output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"down"}, path, &out); err != nil {
		t.Fatalf("down: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 1") {
		t.Errorf("down output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"version", "2"}, path, &out); err != nil {
		t.Fatalf("version 2: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 2") {
		t.Errorf("version output:\n%s", out.String())
	}

	for _, args := range [][]string{{}, {"sideways"}, {"version"}, {"version", "x"}, {"force", "y"}} {
		out.Reset()
		if err := RunMigrateCommand(args, path, &out); err == nil {
			t.Errorf("RunMigrateCommand(%v) should fail", args)
		}
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"help"}, path, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "Database Migration Commands") {
		t.Errorf("help output:\n%s", out.String())
	}
}

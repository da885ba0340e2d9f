package scenario

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// newTestDB creates a scenario database file with a few set and parameter
// tables and returns a read-only handle to it.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.sqlite")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	stmts := []string{
		"CREATE TABLE REGION (val TEXT PRIMARY KEY)",
		"CREATE TABLE TECHNOLOGY (val TEXT PRIMARY KEY)",
		"CREATE TABLE FUEL (val TEXT PRIMARY KEY)",
		"CREATE TABLE YEAR (val TEXT PRIMARY KEY)",
		"CREATE TABLE TIMESLICE (val TEXT PRIMARY KEY)",
		"CREATE TABLE MODE_OF_OPERATION (val TEXT PRIMARY KEY)",
		"INSERT INTO REGION VALUES ('R2'), ('R1')",
		"INSERT INTO TECHNOLOGY VALUES ('T1')",
		"INSERT INTO FUEL VALUES ('F1')",
		"INSERT INTO YEAR VALUES ('2020'), ('2021')",
		"INSERT INTO TIMESLICE VALUES ('L1')",
		"INSERT INTO MODE_OF_OPERATION VALUES ('M1')",
		"CREATE TABLE CapacityFactor (r TEXT, t TEXT, y TEXT, val REAL)",
		"INSERT INTO CapacityFactor VALUES ('R1','T1','2021',0.8), ('R1','T1','2020',0.9), ('R2','T1','2020',NULL)",
	}
	for _, s := range stmts {
		if _, err := raw.Exec(s); err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("failed to close setup connection: %v", err)
	}

	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetOrdering(t *testing.T) {
	db := newTestDB(t)

	regions, err := db.Set(context.Background(), TableRegion)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(regions) != 2 || regions[0] != "R1" || regions[1] != "R2" {
		t.Errorf("regions = %v, want [R1 R2]", regions)
	}
}

func TestSetRejectsBadIdentifier(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Set(context.Background(), "REGION; DROP TABLE REGION"); err == nil {
		t.Error("expected error for invalid table name")
	}
}

func TestLoadSets(t *testing.T) {
	db := newTestDB(t)

	sets, err := db.LoadSets(context.Background())
	if err != nil {
		t.Fatalf("LoadSets failed: %v", err)
	}
	if len(sets.Regions) != 2 || len(sets.Years) != 2 || len(sets.Technologies) != 1 {
		t.Errorf("unexpected set sizes: %+v", sets)
	}
	// STORAGE and NODE tables are absent; they load as empty sets.
	if len(sets.Storages) != 0 || len(sets.Nodes) != 0 {
		t.Errorf("optional sets should be empty, got %v / %v", sets.Storages, sets.Nodes)
	}
}

func TestQueryRowsHonorsOrdering(t *testing.T) {
	db := newTestDB(t)

	rows, err := db.QueryRows(context.Background(),
		"SELECT r, t, y, val FROM CapacityFactor ORDER BY r, t, y", 3)
	if err != nil {
		t.Fatalf("QueryRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.Fields[0] != "R1" || first.Fields[2] != "2020" || !first.HasVal || first.Val != 0.9 {
		t.Errorf("first row = %+v", first)
	}

	// NULL val rows carry HasVal=false, never a silent zero.
	last := rows[2]
	if last.Fields[0] != "R2" || last.HasVal {
		t.Errorf("NULL val row = %+v", last)
	}
}

func TestQueryRowsColumnCountMismatch(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.QueryRows(context.Background(), "SELECT r FROM CapacityFactor", 3); err == nil {
		t.Error("expected error when query returns fewer columns than requested")
	}
}

func TestQueryRowsEmptyResult(t *testing.T) {
	db := newTestDB(t)
	rows, err := db.QueryRows(context.Background(),
		"SELECT r, t, y, val FROM CapacityFactor WHERE r = 'R9'", 3)
	if err != nil {
		t.Fatalf("QueryRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestRowKey(t *testing.T) {
	r := Row{Fields: []string{"R1", "T1", "2020"}}
	key := r.Key(2)
	if len(key) != 2 || key[0] != "R1" || key[1] != "T1" {
		t.Errorf("Key(2) = %v", key)
	}
}

func TestFieldMatrix(t *testing.T) {
	rows := []Row{
		{Fields: []string{"R1", "T1"}},
		{Fields: []string{"R2", "T2"}},
	}
	m := FieldMatrix(rows)
	if len(m) != 2 || m[1][1] != "T2" {
		t.Errorf("FieldMatrix = %v", m)
	}
}

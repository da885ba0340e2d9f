package run

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sei-international/nemo/internal/config"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/solve"
)

// newScenario writes a small but complete scenario database: two years,
// one region, one technology, and the parameter tables the constraint
// families read.
func newScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utopia.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to create scenario: %v", err)
	}
	defer db.Close()

	stmts := []string{
		"CREATE TABLE REGION (val TEXT PRIMARY KEY)",
		"CREATE TABLE TECHNOLOGY (val TEXT PRIMARY KEY)",
		"CREATE TABLE FUEL (val TEXT PRIMARY KEY)",
		"CREATE TABLE YEAR (val TEXT PRIMARY KEY)",
		"CREATE TABLE TIMESLICE (val TEXT PRIMARY KEY)",
		"CREATE TABLE MODE_OF_OPERATION (val TEXT PRIMARY KEY)",
		"INSERT INTO REGION VALUES ('R1')",
		"INSERT INTO TECHNOLOGY VALUES ('T1')",
		"INSERT INTO FUEL VALUES ('F1')",
		"INSERT INTO YEAR VALUES ('2020'), ('2021')",
		"INSERT INTO TIMESLICE VALUES ('L1')",
		"INSERT INTO MODE_OF_OPERATION VALUES ('M1')",
		"CREATE TABLE OperationalLife (r TEXT, t TEXT, val REAL)",
		"INSERT INTO OperationalLife VALUES ('R1', 'T1', 2)",
		"CREATE TABLE OutputActivityRatio (r TEXT, t TEXT, f TEXT, m TEXT, y TEXT, val REAL)",
		"INSERT INTO OutputActivityRatio VALUES ('R1','T1','F1','M1','2020',1.0), ('R1','T1','F1','M1','2021',1.0)",
		"CREATE TABLE CapitalCost (r TEXT, t TEXT, y TEXT, val REAL)",
		"INSERT INTO CapitalCost VALUES ('R1','T1','2020',1.5), ('R1','T1','2021',2.0)",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	return path
}

// optimalBackend returns a fixed optimal solution sized to the model.
func optimalBackend(objective float64) solve.Backend {
	return solve.BackendFunc(func(_ context.Context, m *model.Model) (*solve.Result, error) {
		values := make([]float64, m.NumColumns())
		for i := range values {
			values[i] = 1
		}
		return &solve.Result{Outcome: solve.OutcomeOptimal, Objective: objective, Values: values}, nil
	})
}

func newRunConfig(path string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ScenarioPath = path
	cfg.Results.Variables = []string{"vnewcapacity", "vtotalcost"}
	cfg.Results.ReportZeros = true
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	path := newScenario(t)
	r, err := New(newRunConfig(path), optimalBackend(42))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != solve.OutcomeOptimal || summary.Objective != 42 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("no run ID recorded")
	}
	if summary.Constraints == 0 {
		t.Error("no constraints generated")
	}

	// Results landed in the scenario database.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to reopen scenario: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM vnewcapacity").Scan(&n); err != nil {
		t.Fatalf("result table query failed: %v", err)
	}
	if n != 2 {
		t.Errorf("vnewcapacity has %d rows, want 2", n)
	}
	var meta int
	if err := db.QueryRow("SELECT COUNT(*) FROM solve_metadata").Scan(&meta); err != nil {
		t.Fatalf("metadata query failed: %v", err)
	}
	if meta != 1 {
		t.Errorf("solve_metadata has %d rows, want 1", meta)
	}
}

func TestRunWithRestrictedVariables(t *testing.T) {
	path := newScenario(t)
	cfg := newRunConfig(path)
	cfg.Model.RestrictVars = true

	r, err := New(cfg, optimalBackend(7))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != solve.OutcomeOptimal {
		t.Errorf("outcome = %v", summary.Outcome)
	}
}

func TestRunArchivesResults(t *testing.T) {
	path := newScenario(t)
	cfg := newRunConfig(path)
	cfg.Archive.Enabled = true
	cfg.Archive.Type = "local"
	cfg.Archive.Path = filepath.Join(t.TempDir(), "archive")

	r, err := New(cfg, optimalBackend(1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.ArchiveKey == "" {
		t.Error("no archive key recorded")
	}
	archived := filepath.Join(cfg.Archive.Path, filepath.FromSlash(summary.ArchiveKey))
	if _, err := sql.Open("sqlite3", archived); err != nil {
		t.Errorf("archived database unreadable: %v", err)
	}
}

func TestRunInfeasibleWithDiagnosis(t *testing.T) {
	path := newScenario(t)
	cfg := newRunConfig(path)

	// Infeasible until the cost constraint is detached.
	backend := solve.BackendFunc(func(_ context.Context, m *model.Model) (*solve.Result, error) {
		for _, c := range m.Constraints() {
			if c.Name() == "C1_TotalCost" {
				return &solve.Result{Outcome: solve.OutcomeInfeasible}, nil
			}
		}
		values := make([]float64, m.NumColumns())
		return &solve.Result{Outcome: solve.OutcomeOptimal, Values: values}, nil
	})

	r, err := New(cfg, backend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	summary, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for infeasible model")
	}
	if len(summary.Culprits) != 1 || summary.Culprits[0] != "C1_TotalCost" {
		t.Errorf("culprits = %v, want [C1_TotalCost]", summary.Culprits)
	}

	// No result tables are written for a failed solve.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to reopen scenario: %v", err)
	}
	defer db.Close()
	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='vnewcapacity'").Scan(&n)
	if err != nil {
		t.Fatalf("schema query failed: %v", err)
	}
	if n != 0 {
		t.Error("result table written despite infeasible solve")
	}
}

func TestRunDiagnosisDisabled(t *testing.T) {
	path := newScenario(t)
	cfg := newRunConfig(path)
	cfg.Solver.Diagnose = false

	backend := solve.BackendFunc(func(_ context.Context, _ *model.Model) (*solve.Result, error) {
		return &solve.Result{Outcome: solve.OutcomeInfeasible}, nil
	})
	r, err := New(cfg, backend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	summary, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for infeasible model")
	}
	if len(summary.Culprits) != 0 {
		t.Errorf("culprits = %v with diagnosis disabled", summary.Culprits)
	}
}

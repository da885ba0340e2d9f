package equation

import (
	"fmt"
	"testing"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/scenario"
	"github.com/sei-international/nemo/pkg/types"
)

// newScalarModel builds a model with one scalar variable whose column the
// fold tests accumulate coefficients onto.
func newScalarModel(t *testing.T) (*model.Model, int) {
	t.Helper()
	m := model.New()
	v, err := m.AddScalarVariable("x", model.ContinuousKind, 0, 100)
	if err != nil {
		t.Fatalf("AddScalarVariable failed: %v", err)
	}
	return m, v.ColumnAt(0)
}

// sumSpec folds each row's val onto the scalar column, so a group's
// coefficient is the sum of its rows' vals.
func sumSpec(name string, keyLen int, col int, verify bool) FoldSpec {
	return FoldSpec{
		Name:   name,
		KeyLen: keyLen,
		Sense:  model.SenseGe,
		Add: func(acc *model.Expression, row scenario.Row) error {
			acc.AddTerm(col, row.Val)
			return nil
		},
		VerifyOrder: verify,
	}
}

func paramRows() []scenario.Row {
	return []scenario.Row{
		{Fields: []string{"R1", "2020"}, Val: 5, HasVal: true},
		{Fields: []string{"R1", "2021"}, Val: 3, HasVal: true},
		{Fields: []string{"R2", "2020"}, Val: 1, HasVal: true},
	}
}

func TestFoldGroupsSortedRows(t *testing.T) {
	m, col := newScalarModel(t)

	n, err := Fold(m, sumSpec("Demand", 1, col, true), paramRows())
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("emitted %d constraints, want 2", n)
	}

	cs := m.Constraints()
	wantCoefs := []float64{8, 1}
	wantNames := []string{"Demand[R1]", "Demand[R2]"}
	for i, c := range cs {
		if c.Name() != wantNames[i] {
			t.Errorf("constraint %d name = %q, want %q", i, c.Name(), wantNames[i])
		}
		if got := c.Expr().Coefficient(col); got != wantCoefs[i] {
			t.Errorf("constraint %d coefficient = %v, want %v", i, got, wantCoefs[i])
		}
	}
}

func TestFoldEmptyRows(t *testing.T) {
	m, col := newScalarModel(t)
	n, err := Fold(m, sumSpec("Demand", 1, col, true), nil)
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	if n != 0 || m.NumConstraints() != 0 {
		t.Errorf("empty input emitted %d constraints", m.NumConstraints())
	}
}

func TestFoldSingleRowGroup(t *testing.T) {
	m, col := newScalarModel(t)
	rows := []scenario.Row{{Fields: []string{"R1", "2020"}, Val: 5, HasVal: true}}
	n, err := Fold(m, sumSpec("Demand", 1, col, true), rows)
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	if n != 1 {
		t.Errorf("emitted %d constraints, want 1", n)
	}
}

func TestFoldZeroKeyLenFoldsEverything(t *testing.T) {
	m, col := newScalarModel(t)
	n, err := Fold(m, sumSpec("TotalDemand", 0, col, true), paramRows())
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("emitted %d constraints, want 1", n)
	}
	c := m.Constraints()[0]
	if c.Name() != "TotalDemand" {
		t.Errorf("name = %q", c.Name())
	}
	if got := c.Expr().Coefficient(col); got != 9 {
		t.Errorf("coefficient = %v, want 9", got)
	}
}

func TestFoldFullTupleComparison(t *testing.T) {
	m, col := newScalarModel(t)
	// Groups share the leading field; only a full-tuple comparison keeps
	// them apart.
	rows := []scenario.Row{
		{Fields: []string{"R1", "T1", "p"}, Val: 1, HasVal: true},
		{Fields: []string{"R1", "T2", "p"}, Val: 2, HasVal: true},
	}
	n, err := Fold(m, sumSpec("Activity", 2, col, true), rows)
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	if n != 2 {
		t.Errorf("emitted %d constraints, want 2", n)
	}
}

func TestFoldUnsortedRows(t *testing.T) {
	// R1 reappears after R2: the same logical group arrives in two runs.
	unsorted := []scenario.Row{
		{Fields: []string{"R1", "2020"}, Val: 5, HasVal: true},
		{Fields: []string{"R2", "2020"}, Val: 1, HasVal: true},
		{Fields: []string{"R1", "2021"}, Val: 3, HasVal: true},
	}

	t.Run("verify off silently splits the group", func(t *testing.T) {
		m, col := newScalarModel(t)
		n, err := Fold(m, sumSpec("Demand", 1, col, false), unsorted)
		if err != nil {
			t.Fatalf("Fold failed: %v", err)
		}
		// Three constraints instead of two, and neither R1 constraint
		// carries the full total of 8.
		if n != 3 {
			t.Fatalf("emitted %d constraints, want 3", n)
		}
		for _, c := range m.Constraints() {
			if got := c.Expr().Coefficient(col); got == 8 {
				t.Errorf("split group %s unexpectedly carries the full total", c.Name())
			}
		}
	})

	t.Run("verify on rejects the input", func(t *testing.T) {
		m, col := newScalarModel(t)
		_, err := Fold(m, sumSpec("Demand", 1, col, true), unsorted)
		if err == nil {
			t.Fatal("expected error for unsorted rows")
		}
		if errors.GetCode(err) != errors.CodeUnsortedRows {
			t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.CodeUnsortedRows)
		}
	})
}

func TestFoldShortRow(t *testing.T) {
	m, col := newScalarModel(t)
	rows := []scenario.Row{{Fields: []string{"R1"}, Val: 5, HasVal: true}}
	_, err := Fold(m, sumSpec("Demand", 2, col, true), rows)
	if err == nil {
		t.Fatal("expected error for row shorter than key")
	}
	if errors.GetCode(err) != errors.CodeBadKeyLength {
		t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.CodeBadKeyLength)
	}
}

func TestFoldMissingAddFunc(t *testing.T) {
	m, _ := newScalarModel(t)
	if _, err := Fold(m, FoldSpec{Name: "Broken", KeyLen: 1}, paramRows()); err == nil {
		t.Fatal("expected error for spec without Add")
	}
}

func TestFoldRHSFailurePropagates(t *testing.T) {
	m, col := newScalarModel(t)
	spec := sumSpec("Demand", 1, col, true)
	spec.RHS = func(key types.KeyTuple) (*model.Expression, error) {
		return nil, fmt.Errorf("no binding for %v", key)
	}
	_, err := Fold(m, spec, paramRows())
	if err == nil {
		t.Fatal("expected RHS failure to propagate")
	}
	if m.NumConstraints() != 0 {
		t.Errorf("failed group still emitted %d constraints", m.NumConstraints())
	}
}

package diagnose

import (
	"context"
	"math"
	"testing"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/solve"
)

// ruleBackend declares the model infeasible whenever any constraint named
// in bad is active, mimicking a solver whose infeasibility is caused by
// specific rows. It records how many solves ran.
type ruleBackend struct {
	bad    map[string]bool
	solves int

	// ambiguousAfter, when positive, makes every solve past that count
	// return an unclassifiable outcome.
	ambiguousAfter int
}

func (b *ruleBackend) Solve(_ context.Context, m *model.Model) (*solve.Result, error) {
	b.solves++
	if b.ambiguousAfter > 0 && b.solves > b.ambiguousAfter {
		return &solve.Result{Outcome: solve.OutcomeOther}, nil
	}
	for _, c := range m.Constraints() {
		if b.bad[c.Name()] {
			return &solve.Result{Outcome: solve.OutcomeInfeasible}, nil
		}
	}
	return &solve.Result{Outcome: solve.OutcomeOptimal}, nil
}

// newConstraintModel builds a model with n constraints named c0..c(n-1)
// over a single scalar variable.
func newConstraintModel(t *testing.T, n int) *model.Model {
	t.Helper()
	m := model.New()
	v, err := m.AddScalarVariable("vtotalcost", model.ContinuousKind, 0, 1e12)
	if err != nil {
		t.Fatalf("AddScalarVariable failed: %v", err)
	}
	if err := m.SetObjective("vtotalcost", false); err != nil {
		t.Fatalf("SetObjective failed: %v", err)
	}
	for i := 0; i < n; i++ {
		expr := model.NewExpression().AddTerm(v.ColumnAt(0), 1)
		m.AddConstraint(constraintName(i), expr, model.SenseGe, nil)
	}
	return m
}

func constraintName(i int) string {
	return "c" + string(rune('0'+i))
}

func TestDiagnoseFeasibleModel(t *testing.T) {
	m := newConstraintModel(t, 5)
	d := &Diagnoser{Backend: &ruleBackend{bad: map[string]bool{}}}

	diag, err := d.Diagnose(context.Background(), m)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if len(diag.Culprits) != 0 || !diag.Complete {
		t.Errorf("diagnosis = %+v, want empty and complete", diag)
	}
}

func TestDiagnoseSingleCulprit(t *testing.T) {
	m := newConstraintModel(t, 8)
	d := &Diagnoser{Backend: &ruleBackend{bad: map[string]bool{"c5": true}}}

	diag, err := d.Diagnose(context.Background(), m)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if len(diag.Culprits) != 1 || diag.Culprits[0] != "c5" {
		t.Errorf("culprits = %v, want [c5]", diag.Culprits)
	}
	if !diag.Complete {
		t.Error("diagnosis not marked complete")
	}
}

func TestDiagnoseMultipleCulprits(t *testing.T) {
	m := newConstraintModel(t, 8)
	d := &Diagnoser{Backend: &ruleBackend{bad: map[string]bool{"c2": true, "c6": true}}}

	diag, err := d.Diagnose(context.Background(), m)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if len(diag.Culprits) != 2 || diag.Culprits[0] != "c2" || diag.Culprits[1] != "c6" {
		t.Errorf("culprits = %v, want [c2 c6]", diag.Culprits)
	}
}

func TestDiagnoseRestoresModel(t *testing.T) {
	m := newConstraintModel(t, 6)
	d := &Diagnoser{Backend: &ruleBackend{bad: map[string]bool{"c3": true}}}

	if _, err := d.Diagnose(context.Background(), m); err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}

	cs := m.Constraints()
	if len(cs) != 6 {
		t.Fatalf("model has %d constraints after diagnosis, want 6", len(cs))
	}
	for i, c := range cs {
		if c.Seq() != i {
			t.Errorf("constraint %d has seq %d; original order lost", i, c.Seq())
		}
	}
}

func TestDiagnoseRelaxesAndRestoresObjectiveBound(t *testing.T) {
	m := newConstraintModel(t, 4)
	v, err := m.Variable("vtotalcost")
	if err != nil {
		t.Fatalf("Variable failed: %v", err)
	}

	// A backend that fails the test if the cost floor is still in place
	// during any reduced solve.
	checked := 0
	backend := solve.BackendFunc(func(ctx context.Context, mm *model.Model) (*solve.Result, error) {
		if checked++; checked > 1 && !math.IsInf(v.Lower(), -1) {
			t.Error("objective lower bound not relaxed during search")
		}
		for _, c := range mm.Constraints() {
			if c.Name() == "c1" {
				return &solve.Result{Outcome: solve.OutcomeInfeasible}, nil
			}
		}
		return &solve.Result{Outcome: solve.OutcomeOptimal}, nil
	})

	d := &Diagnoser{Backend: backend}
	if _, err := d.Diagnose(context.Background(), m); err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if v.Lower() != 0 {
		t.Errorf("objective lower bound = %v after diagnosis, want 0 restored", v.Lower())
	}
}

func TestDiagnoseAmbiguousOutcomeAborts(t *testing.T) {
	m := newConstraintModel(t, 8)
	backend := &ruleBackend{bad: map[string]bool{"c2": true, "c6": true}, ambiguousAfter: 6}
	d := &Diagnoser{Backend: backend}

	diag, err := d.Diagnose(context.Background(), m)
	if err == nil {
		t.Fatal("expected error on ambiguous solver outcome")
	}
	if errors.GetCode(err) != errors.CodeAmbiguousOutcome {
		t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.CodeAmbiguousOutcome)
	}
	if diag.Complete {
		t.Error("aborted diagnosis marked complete")
	}
	// Partial results survive the abort, and the model is still restored.
	if m.NumConstraints() != 8 {
		t.Errorf("model has %d constraints after abort, want 8", m.NumConstraints())
	}
}

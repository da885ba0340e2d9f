// Package diagnose locates the constraints responsible for an infeasible
// model by delta debugging: bisect over the ordered constraint set, solving
// reduced models until the earliest constraint that tips the model into
// infeasibility is isolated, then repeat with that constraint removed.
package diagnose

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/solve"
)

// Diagnosis reports the constraints found responsible for infeasibility.
// When the solver returns an outcome that is neither feasible nor
// infeasible mid-search, the search aborts and Complete is false; Culprits
// then holds the constraints isolated before the abort.
type Diagnosis struct {
	Culprits []string
	Complete bool
}

// Diagnoser runs the bisection search against a solver backend. The model
// is mutated during the search (constraints detached, the objective
// variable's lower bound relaxed) and fully restored before returning, on
// every path.
type Diagnoser struct {
	Backend solve.Backend

	// MaxCulprits caps the number of isolation rounds. Zero means no cap
	// beyond the constraint count.
	MaxCulprits int
}

type feasibility int

const (
	feasible feasibility = iota
	infeasible
	ambiguous
)

func classify(r *solve.Result) feasibility {
	switch {
	case r.Outcome == solve.OutcomeOptimal || r.Outcome == solve.OutcomeUnbounded:
		return feasible
	case r.Outcome.Infeasible():
		return infeasible
	default:
		return ambiguous
	}
}

func (d *Diagnoser) probe(ctx context.Context, m *model.Model) (feasibility, error) {
	res, err := d.Backend.Solve(ctx, m)
	if err != nil {
		return ambiguous, err
	}
	return classify(res), nil
}

// Diagnose searches for the constraints that make m infeasible. A feasible
// model yields an empty, complete diagnosis. On an ambiguous solver outcome
// the partial diagnosis is returned alongside an error.
func (d *Diagnoser) Diagnose(ctx context.Context, m *model.Model) (*Diagnosis, error) {
	diag := &Diagnosis{Complete: true}

	state, err := d.probe(ctx, m)
	if err != nil {
		return diag, err
	}
	if state == feasible {
		return diag, nil
	}
	if state == ambiguous {
		diag.Complete = false
		return diag, errors.NewSolveError(errors.CodeAmbiguousOutcome,
			"solver outcome is neither feasible nor infeasible", nil)
	}

	// A binding lower bound on the cost variable can mask the real
	// infeasibility, so relax it for the duration of the search.
	restoreObjective := d.relaxObjective(m)
	defer restoreObjective()

	// Culprits are detached from the model during the search so later
	// rounds bisect over the remainder; all of them go back at the end.
	var removed []*model.Constraint
	defer func() { m.Restore(removed...) }()

	limit := d.MaxCulprits
	if limit <= 0 || limit > m.NumConstraints() {
		limit = m.NumConstraints()
	}

	for round := 0; round < limit; round++ {
		culprit, state, err := d.isolate(ctx, m)
		if err != nil {
			diag.Complete = false
			return diag, err
		}
		if state == ambiguous {
			diag.Complete = false
			return diag, errors.NewSolveError(errors.CodeAmbiguousOutcome,
				fmt.Sprintf("aborting after %d culprits: solver outcome is neither feasible nor infeasible", len(diag.Culprits)), nil)
		}
		if culprit == nil {
			// Already feasible with the culprits removed so far.
			return diag, nil
		}

		log.Printf("diagnose: isolated %s", culprit.Name())
		diag.Culprits = append(diag.Culprits, culprit.Name())
		m.Remove(culprit)
		removed = append(removed, culprit)

		state, err = d.probe(ctx, m)
		if err != nil {
			diag.Complete = false
			return diag, err
		}
		if state == feasible {
			return diag, nil
		}
		if state == ambiguous {
			diag.Complete = false
			return diag, errors.NewSolveError(errors.CodeAmbiguousOutcome,
				fmt.Sprintf("aborting after %d culprits: solver outcome is neither feasible nor infeasible", len(diag.Culprits)), nil)
		}
	}
	return diag, nil
}

// isolate bisects over the active constraints for the shortest infeasible
// prefix and returns its last constraint. A nil culprit with feasible state
// means the model is already feasible. Detached constraints are restored
// before returning.
//
// Invariant across the loop: the prefix of length lastGood solves feasible,
// the prefix of length lastInfeasible solves infeasible.
func (d *Diagnoser) isolate(ctx context.Context, m *model.Model) (*model.Constraint, feasibility, error) {
	n := m.NumConstraints()
	if n == 0 {
		return nil, feasible, nil
	}

	lastGood, lastInfeasible := 0, n
	for lastInfeasible-lastGood > 1 {
		// Ceiling split so the search always makes progress.
		mid := lastGood + (lastInfeasible-lastGood+1)/2

		reserve := m.Detach(mid, n)
		state, err := d.probe(ctx, m)
		m.Restore(reserve...)
		if err != nil || state == ambiguous {
			return nil, ambiguous, err
		}
		if state == infeasible {
			lastInfeasible = mid
		} else {
			lastGood = mid
		}
	}

	return m.Constraints()[lastInfeasible-1], infeasible, nil
}

// relaxObjective unsets the objective variable's lower bound and returns a
// function restoring it. A model without an objective is left untouched.
func (d *Diagnoser) relaxObjective(m *model.Model) func() {
	name, _ := m.Objective()
	if name == "" {
		return func() {}
	}
	v, err := m.Variable(name)
	if err != nil {
		return func() {}
	}
	saved := v.Lower()
	if math.IsInf(saved, -1) {
		return func() {}
	}
	v.UnsetLower()
	return func() { v.SetLower(saved) }
}

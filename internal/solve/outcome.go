// Package solve defines the solver-collaborator boundary: translating the
// in-memory model into a backend's form, running a blocking optimize call,
// and classifying its outcome. Solver internals stay behind the Backend
// interface.
package solve

// Outcome is the classified status of an optimize call.
type Outcome int

const (
	// OutcomeOptimal means an optimal solution was found.
	OutcomeOptimal Outcome = iota
	// OutcomeInfeasible means the model admits no feasible point.
	OutcomeInfeasible
	// OutcomeInfeasibleOrUnbounded means the backend could not separate
	// infeasibility from unboundedness.
	OutcomeInfeasibleOrUnbounded
	// OutcomeDualInfeasible is reported by some backends for dual
	// infeasibility.
	OutcomeDualInfeasible
	// OutcomeLocallyInfeasible is reported by nonlinear-capable backends.
	OutcomeLocallyInfeasible
	// OutcomeUnbounded means the objective is unbounded.
	OutcomeUnbounded
	// OutcomeOther covers every unclassified status (limits hit, solver
	// gave up, numerical failure).
	OutcomeOther
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOptimal:
		return "optimal"
	case OutcomeInfeasible:
		return "infeasible"
	case OutcomeInfeasibleOrUnbounded:
		return "infeasible-or-unbounded"
	case OutcomeDualInfeasible:
		return "dual-infeasible"
	case OutcomeLocallyInfeasible:
		return "locally-infeasible"
	case OutcomeUnbounded:
		return "unbounded"
	default:
		return "other"
	}
}

// Infeasible reports whether the outcome is one of the recognized
// infeasibility statuses. The diagnoser keys its search on this set.
func (o Outcome) Infeasible() bool {
	switch o {
	case OutcomeInfeasible, OutcomeInfeasibleOrUnbounded, OutcomeDualInfeasible, OutcomeLocallyInfeasible:
		return true
	default:
		return false
	}
}

// Result carries the classified outcome and, when a solution exists, the
// column values and objective.
type Result struct {
	Outcome   Outcome
	Objective float64
	Values    []float64
}

// Value returns the solved value for a column, or zero when no solution was
// populated or the index is out of range.
func (r *Result) Value(col int) float64 {
	if r == nil || col < 0 || col >= len(r.Values) {
		return 0
	}
	return r.Values[col]
}

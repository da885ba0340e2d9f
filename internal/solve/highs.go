package solve

import (
	"context"

	"github.com/bartolsthoorn/gohighs/highs"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
)

// HiGHSBackend solves models with the HiGHS LP/MIP solver.
type HiGHSBackend struct {
	opts []highs.SolveOption
}

// NewHiGHSBackend creates a backend with the given solver options. Output
// is disabled unless overridden.
func NewHiGHSBackend(opts ...highs.SolveOption) *HiGHSBackend {
	merged := append([]highs.SolveOption{highs.WithOutput(false)}, opts...)
	return &HiGHSBackend{opts: merged}
}

// Solve translates the model into HiGHS row/column form and runs a blocking
// optimize call.
func (b *HiGHSBackend) Solve(ctx context.Context, m *model.Model) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hm := b.translate(m)
	sol, err := hm.Solve(b.opts...)
	if err != nil {
		return nil, errors.NewSolveError(errors.CodeBackendFailed, "highs solve failed", err)
	}

	res := &Result{
		Outcome:   mapStatus(sol.Status),
		Objective: sol.Objective,
	}
	if sol.Status.HasSolution() {
		res.Values = sol.ColValues
	}
	return res, nil
}

// translate builds the gohighs model form from the engine model. Columns
// cover every declared variable tuple; rows cover only active constraints,
// so the diagnoser's evictions are reflected in each re-solve.
func (b *HiGHSBackend) translate(m *model.Model) *highs.Model {
	lower, upper := m.ColumnBounds()
	hm := &highs.Model{
		ColCosts: m.ObjectiveCosts(),
		ColLower: lower,
		ColUpper: upper,
		VarTypes: columnTypes(m),
	}
	_, hm.Maximize = m.Objective()

	for _, c := range m.Constraints() {
		cols, coefs, rowLower, rowUpper := c.Row()
		hm.AddSparseRow(rowLower, cols, coefs, rowUpper)
	}
	return hm
}

// columnTypes maps variable kinds onto HiGHS variable types. Binary
// variables are integer columns whose 0/1 bounds come from the model.
func columnTypes(m *model.Model) []highs.VariableType {
	kinds := m.ColumnKinds()
	out := make([]highs.VariableType, len(kinds))
	for i, k := range kinds {
		switch k {
		case model.IntegerKind, model.BinaryKind:
			out[i] = highs.Integer
		default:
			out[i] = highs.Continuous
		}
	}
	return out
}

// mapStatus classifies a HiGHS model status. HiGHS never reports dual or
// local infeasibility; those outcomes exist for other backends.
func mapStatus(s highs.ModelStatus) Outcome {
	switch s {
	case highs.ModelStatusOptimal, highs.ModelStatusModelEmpty:
		return OutcomeOptimal
	case highs.ModelStatusInfeasible:
		return OutcomeInfeasible
	case highs.ModelStatusUnboundedOrInfeasible:
		return OutcomeInfeasibleOrUnbounded
	case highs.ModelStatusUnbounded:
		return OutcomeUnbounded
	default:
		return OutcomeOther
	}
}

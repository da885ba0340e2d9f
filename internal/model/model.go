package model

import (
	"sort"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/pkg/types"
)

// Model owns the decision variables and the ordered constraint set. Variables
// are created once at build time and never destroyed; constraints are added
// exactly once but may be evicted into a reserve and restored by the
// infeasibility diagnoser. Constraint order is semantically significant, so
// all constraint mutation is single-threaded by contract.
type Model struct {
	vars       []*Variable
	varsByName map[string]*Variable
	cols       int

	constraints []*Constraint // active rows, ascending by seq
	nextSeq     int

	objectiveVar string
	maximize     bool
}

// New returns an empty model.
func New() *Model {
	return &Model{varsByName: make(map[string]*Variable)}
}

// addVariable registers a variable and assigns its column block.
func (m *Model) addVariable(v *Variable) (*Variable, error) {
	if _, dup := m.varsByName[v.name]; dup {
		return nil, errors.NewModelError(errors.CodeDuplicateName, "variable already declared: "+v.name)
	}
	v.base = m.cols
	m.cols += len(v.tuples)
	m.vars = append(m.vars, v)
	m.varsByName[v.name] = v
	return v, nil
}

// AddVariable declares a variable over an explicit tuple list. Most callers
// use AddDenseVariable or AddSparseVariable instead.
func (m *Model) AddVariable(name string, dims []string, kind Kind, lower, upper float64, tuples []types.KeyTuple, sparseDecl bool) (*Variable, error) {
	v, err := newVariable(name, dims, kind, lower, upper, tuples, sparseDecl)
	if err != nil {
		return nil, err
	}
	return m.addVariable(v)
}

// AddScalarVariable declares a dimensionless variable (a single column),
// such as a model-wide cost total.
func (m *Model) AddScalarVariable(name string, kind Kind, lower, upper float64) (*Variable, error) {
	return m.AddVariable(name, nil, kind, lower, upper, []types.KeyTuple{{}}, false)
}

// Variable looks up a declared variable by name.
func (m *Model) Variable(name string) (*Variable, error) {
	v, ok := m.varsByName[name]
	if !ok {
		return nil, errors.NewModelError(errors.CodeUnknownVariable, "no variable named "+name)
	}
	return v, nil
}

// Variables returns all variables in declaration order.
func (m *Model) Variables() []*Variable { return m.vars }

// NumColumns returns the total number of columns across all variables.
func (m *Model) NumColumns() int { return m.cols }

// SetObjective selects the scalar variable to optimize.
func (m *Model) SetObjective(varName string, maximize bool) error {
	if _, err := m.Variable(varName); err != nil {
		return err
	}
	m.objectiveVar = varName
	m.maximize = maximize
	return nil
}

// Objective returns the objective variable name (empty if unset) and
// direction.
func (m *Model) Objective() (varName string, maximize bool) {
	return m.objectiveVar, m.maximize
}

// SetVariableLower sets the lower bound of a named variable. Passing
// negative infinity unsets the bound.
func (m *Model) SetVariableLower(name string, lower float64) error {
	v, err := m.Variable(name)
	if err != nil {
		return err
	}
	v.SetLower(lower)
	return nil
}

// AddConstraint folds lhs (sense) rhs into a row and appends it to the
// model. rhs may be nil for a zero right-hand side. The returned constraint
// carries a stable sequence number used for order-stable restoration.
func (m *Model) AddConstraint(name string, lhs *Expression, sense Sense, rhs *Expression) *Constraint {
	c := newConstraint(name, m.nextSeq, lhs, sense, rhs)
	m.nextSeq++
	m.constraints = append(m.constraints, c)
	return c
}

// Constraints lists all active constraints in stable insertion order.
// Simple variable bounds are column bounds, not rows, so they never appear
// here.
func (m *Model) Constraints() []*Constraint { return m.constraints }

// NumConstraints returns the number of active constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Detach removes the active constraints in positions [lo, hi) and returns
// them in their original order. The remaining constraints keep their
// relative order.
func (m *Model) Detach(lo, hi int) []*Constraint {
	if lo < 0 || hi > len(m.constraints) || lo >= hi {
		return nil
	}
	detached := make([]*Constraint, hi-lo)
	copy(detached, m.constraints[lo:hi])
	m.constraints = append(m.constraints[:lo], m.constraints[hi:]...)
	return detached
}

// Remove detaches a single constraint by identity. Returns false if the
// constraint is not active.
func (m *Model) Remove(c *Constraint) bool {
	for i, have := range m.constraints {
		if have == c {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return true
		}
	}
	return false
}

// Restore re-inserts previously detached constraints. The active list is
// re-sorted by sequence number, so restoration is order-stable regardless
// of how the reserve was accumulated.
func (m *Model) Restore(cs ...*Constraint) {
	if len(cs) == 0 {
		return
	}
	m.constraints = append(m.constraints, cs...)
	sort.Slice(m.constraints, func(i, j int) bool {
		return m.constraints[i].seq < m.constraints[j].seq
	})
}

// ColumnBounds expands per-variable bounds into per-column slices.
func (m *Model) ColumnBounds() (lower, upper []float64) {
	lower = make([]float64, m.cols)
	upper = make([]float64, m.cols)
	for _, v := range m.vars {
		for i := 0; i < len(v.tuples); i++ {
			lower[v.base+i] = v.lower
			upper[v.base+i] = v.upper
		}
	}
	return lower, upper
}

// ColumnKinds expands per-variable kinds into a per-column slice.
func (m *Model) ColumnKinds() []Kind {
	kinds := make([]Kind, m.cols)
	for _, v := range m.vars {
		for i := 0; i < len(v.tuples); i++ {
			kinds[v.base+i] = v.kind
		}
	}
	return kinds
}

// ObjectiveCosts expands the objective into per-column costs. With no
// objective set, all costs are zero (a pure feasibility model).
func (m *Model) ObjectiveCosts() []float64 {
	costs := make([]float64, m.cols)
	if m.objectiveVar == "" {
		return costs
	}
	v := m.varsByName[m.objectiveVar]
	for i := 0; i < len(v.tuples); i++ {
		costs[v.base+i] = 1
	}
	return costs
}

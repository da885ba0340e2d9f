package model

import "math"

// Sense is the comparator of a constraint. A closed set of operators is
// used in place of configuration-supplied formula strings.
type Sense int

const (
	// SenseEq constrains lhs == rhs.
	SenseEq Sense = iota
	// SenseLe constrains lhs <= rhs.
	SenseLe
	// SenseGe constrains lhs >= rhs.
	SenseGe
)

// String returns the comparator symbol.
func (s Sense) String() string {
	switch s {
	case SenseEq:
		return "=="
	case SenseLe:
		return "<="
	case SenseGe:
		return ">="
	default:
		return "?"
	}
}

// Constraint is a row of the model: bounded linear combination of columns.
// It is created once, carries a stable sequence number from its insertion,
// and may be temporarily evicted and restored by the infeasibility
// diagnoser without losing its original relative order.
type Constraint struct {
	name  string
	seq   int
	expr  *Expression // variable terms only; constants folded into bounds
	lower float64
	upper float64
}

// newConstraint folds lhs (sense) rhs into row form: terms = lhs - rhs,
// bounds from the residual constant.
func newConstraint(name string, seq int, lhs *Expression, sense Sense, rhs *Expression) *Constraint {
	expr := lhs.Clone()
	if rhs != nil {
		expr.AddExpression(rhs, -1)
	}
	bound := -expr.constant
	expr.constant = 0

	c := &Constraint{name: name, seq: seq, expr: expr}
	switch sense {
	case SenseEq:
		c.lower, c.upper = bound, bound
	case SenseLe:
		c.lower, c.upper = math.Inf(-1), bound
	case SenseGe:
		c.lower, c.upper = bound, math.Inf(1)
	}
	return c
}

// Name returns the constraint family name plus group key.
func (c *Constraint) Name() string { return c.name }

// Seq returns the stable insertion sequence number.
func (c *Constraint) Seq() int { return c.seq }

// Row returns the sorted (columns, coefficients) pair and bounds of the row.
func (c *Constraint) Row() (cols []int, coefs []float64, lower, upper float64) {
	cols, coefs = c.expr.Terms()
	return cols, coefs, c.lower, c.upper
}

// Bounds returns the row bounds.
func (c *Constraint) Bounds() (lower, upper float64) {
	return c.lower, c.upper
}

// Expr returns the row's expression (terms only; constants live in bounds).
func (c *Constraint) Expr() *Expression { return c.expr }

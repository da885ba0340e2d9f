// Package model holds the in-memory optimization model: decision variables
// with dense or sparse index domains, linear expressions, and an ordered
// constraint set supporting stable eviction and restoration.
package model

import "sort"

// Expression is a mutable accumulator for a weighted sum of decision
// variable columns plus a constant. It is reused across groups by the
// constraint builders: flushed into a constraint, then Reset.
type Expression struct {
	terms    map[int]float64
	constant float64
}

// NewExpression returns an empty expression.
func NewExpression() *Expression {
	return &Expression{terms: make(map[int]float64)}
}

// AddTerm adds coef * column to the expression. Coefficients for the same
// column accumulate.
func (e *Expression) AddTerm(col int, coef float64) *Expression {
	e.terms[col] += coef
	return e
}

// AddConstant adds a constant contribution.
func (e *Expression) AddConstant(c float64) *Expression {
	e.constant += c
	return e
}

// AddExpression adds scale * other into e. other is not modified.
func (e *Expression) AddExpression(other *Expression, scale float64) *Expression {
	for col, coef := range other.terms {
		e.terms[col] += scale * coef
	}
	e.constant += scale * other.constant
	return e
}

// Constant returns the constant part.
func (e *Expression) Constant() float64 {
	return e.constant
}

// NumTerms returns the number of distinct columns referenced.
func (e *Expression) NumTerms() int {
	return len(e.terms)
}

// Empty reports whether the expression has no terms and a zero constant.
func (e *Expression) Empty() bool {
	return len(e.terms) == 0 && e.constant == 0
}

// Reset clears the expression for reuse.
func (e *Expression) Reset() {
	clear(e.terms)
	e.constant = 0
}

// Clone returns an independent copy.
func (e *Expression) Clone() *Expression {
	cp := &Expression{
		terms:    make(map[int]float64, len(e.terms)),
		constant: e.constant,
	}
	for col, coef := range e.terms {
		cp.terms[col] = coef
	}
	return cp
}

// Coefficient returns the coefficient for a column (zero if absent).
func (e *Expression) Coefficient(col int) float64 {
	return e.terms[col]
}

// Terms returns (column, coefficient) pairs sorted by column index. Zero
// coefficients that arose from cancellation are dropped.
func (e *Expression) Terms() ([]int, []float64) {
	cols := make([]int, 0, len(e.terms))
	for col, coef := range e.terms {
		if coef != 0 {
			cols = append(cols, col)
		}
	}
	sort.Ints(cols)
	coefs := make([]float64, len(cols))
	for i, col := range cols {
		coefs[i] = e.terms[col]
	}
	return cols, coefs
}

// Evaluate computes the expression value against a column-indexed solution.
func (e *Expression) Evaluate(values []float64) float64 {
	total := e.constant
	for col, coef := range e.terms {
		if col >= 0 && col < len(values) {
			total += coef * values[col]
		}
	}
	return total
}

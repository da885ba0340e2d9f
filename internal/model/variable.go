package model

import (
	"fmt"
	"math"

	"github.com/sei-international/nemo/pkg/types"
)

// Kind classifies a decision variable.
type Kind int

const (
	// ContinuousKind is a continuous variable (default).
	ContinuousKind Kind = iota
	// IntegerKind is an integer variable.
	IntegerKind
	// BinaryKind is a 0/1 variable.
	BinaryKind
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case ContinuousKind:
		return "continuous"
	case IntegerKind:
		return "integer"
	case BinaryKind:
		return "binary"
	default:
		return "unknown"
	}
}

// Variable is a decision variable indexed by a tuple of dimension values.
// Its index domain is fixed at declaration time: either the dense product of
// named domains or an explicit sparse support set. Tuples outside the domain
// are structurally absent, not zero.
type Variable struct {
	name   string
	dims   []string
	kind   Kind
	lower  float64
	upper  float64
	sparse bool

	base   int // first global column index in the owning model
	tuples []types.KeyTuple
	index  map[string]int // encoded tuple -> offset from base
}

func newVariable(name string, dims []string, kind Kind, lower, upper float64, tuples []types.KeyTuple, sparse bool) (*Variable, error) {
	for _, t := range tuples {
		if len(t) != len(dims) {
			return nil, fmt.Errorf("model: variable %s: tuple %v does not match dimensions %v", name, t, dims)
		}
	}
	v := &Variable{
		name:   name,
		dims:   dims,
		kind:   kind,
		lower:  lower,
		upper:  upper,
		sparse: sparse,
		tuples: tuples,
		index:  make(map[string]int, len(tuples)),
	}
	for i, t := range tuples {
		key := t.Encode()
		if _, dup := v.index[key]; dup {
			return nil, fmt.Errorf("model: variable %s: duplicate tuple %v", name, t)
		}
		v.index[key] = i
	}
	return v, nil
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Dims returns the ordered dimension names.
func (v *Variable) Dims() []string { return v.dims }

// Kind returns the variable kind.
func (v *Variable) Kind() Kind { return v.kind }

// Sparse reports whether the variable was declared over a restricted
// support set.
func (v *Variable) Sparse() bool { return v.sparse }

// Size returns the number of declared tuples.
func (v *Variable) Size() int { return len(v.tuples) }

// Lower returns the lower bound applied to every column of the variable.
func (v *Variable) Lower() float64 { return v.lower }

// Upper returns the upper bound applied to every column of the variable.
func (v *Variable) Upper() float64 { return v.upper }

// SetLower replaces the lower bound. Used by the infeasibility diagnoser to
// relax the cost variable during the search.
func (v *Variable) SetLower(lower float64) { v.lower = lower }

// UnsetLower removes the lower bound entirely.
func (v *Variable) UnsetLower() { v.lower = math.Inf(-1) }

// Tuple returns the tuple at the given offset.
func (v *Variable) Tuple(i int) types.KeyTuple { return v.tuples[i] }

// Tuples returns all declared tuples in declaration order.
func (v *Variable) Tuples() []types.KeyTuple { return v.tuples }

// Column returns the global column index for a tuple, or ok=false when the
// tuple is outside the declared domain.
func (v *Variable) Column(t types.KeyTuple) (int, bool) {
	off, ok := v.index[t.Encode()]
	if !ok {
		return 0, false
	}
	return v.base + off, true
}

// MustColumn is Column for callers that treat an out-of-domain tuple as a
// programming error. It panics rather than silently returning zero.
func (v *Variable) MustColumn(t types.KeyTuple) int {
	col, ok := v.Column(t)
	if !ok {
		panic(fmt.Sprintf("model: variable %s has no tuple %v in its declared domain", v.name, t))
	}
	return col
}

// ColumnAt returns the global column index for the tuple at offset i.
func (v *Variable) ColumnAt(i int) int { return v.base + i }

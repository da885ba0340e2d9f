package model

import (
	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/sparse"
	"github.com/sei-international/nemo/pkg/types"
)

// DenseDomain enumerates the full Cartesian product of the named domain
// sets, in domain order with the last dimension varying fastest.
func DenseDomain(domains ...[]string) []types.KeyTuple {
	if len(domains) == 0 {
		return nil
	}
	total := 1
	for _, d := range domains {
		total *= len(d)
	}
	tuples := make([]types.KeyTuple, 0, total)
	var walk func(prefix types.KeyTuple, rest [][]string)
	walk = func(prefix types.KeyTuple, rest [][]string) {
		if len(rest) == 0 {
			tuples = append(tuples, prefix.Clone())
			return
		}
		for _, v := range rest[0] {
			walk(prefix.Extend(v), rest[1:])
		}
	}
	walk(types.KeyTuple{}, domains)
	return tuples
}

// ResolveDomain decides between a dense and a sparse declaration for a
// variable. When restrict is false or no support index was computed, the
// variable spans the full product of its domains; otherwise it spans exactly
// the tuples reachable through the index chain. The choice is a
// size/performance trade-off and never changes the variable's meaning —
// out-of-domain tuples are structurally absent either way.
func ResolveDomain(restrict bool, support sparse.Index, domains ...[]string) ([]types.KeyTuple, bool) {
	if !restrict || support == nil {
		return DenseDomain(domains...), false
	}
	return support.Tuples(), true
}

// AddDenseVariable declares a variable over the full product of its domains.
func (m *Model) AddDenseVariable(name string, dims []string, kind Kind, lower, upper float64, domains ...[]string) (*Variable, error) {
	if len(dims) != len(domains) {
		return nil, errors.NewValidationError(errors.CodeBadKeyLength,
			"dimension names and domain sets differ in length for "+name)
	}
	for i, d := range domains {
		if len(d) == 0 {
			return nil, errors.NewValidationError(errors.CodeEmptyDimension,
				"empty domain "+dims[i]+" for "+name)
		}
	}
	return m.AddVariable(name, dims, kind, lower, upper, DenseDomain(domains...), false)
}

// AddSparseVariable declares a variable over the support set computed by
// the sparse index builder. The chain depth must be one less than the
// number of dimensions.
func (m *Model) AddSparseVariable(name string, dims []string, kind Kind, lower, upper float64, support sparse.Index) (*Variable, error) {
	if len(support) != len(dims)-1 {
		return nil, errors.NewValidationError(errors.CodeBadKeyLength,
			"support chain depth does not match dimensions for "+name)
	}
	return m.AddVariable(name, dims, kind, lower, upper, support.Tuples(), true)
}

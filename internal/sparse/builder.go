// Package sparse builds the multidimensional support set of a decision
// variable from relational query results. The support is represented as a
// chain of index levels rather than a dense Cartesian product, so variables
// over many dimensions stay proportional to the data that actually exists.
package sparse

import (
	"fmt"

	"github.com/sei-international/nemo/pkg/types"
)

// ValueSet is a set of dimension values. Duplicates are idempotent.
type ValueSet map[string]struct{}

// Add inserts v into the set.
func (s ValueSet) Add(v string) {
	s[v] = struct{}{}
}

// Contains reports whether v is in the set.
func (s ValueSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Level maps an encoded KeyTuple prefix of length k to the set of values
// observed in dimension k+1 across all rows sharing that prefix. Keys are
// encoded with types.KeyTuple.Encode and recovered with types.DecodeKey.
type Level map[string]ValueSet

// Index is a chain of levels. Level j (0-based) keys are prefixes of length
// j+1; a chain of m levels jointly defines the support of an
// (m+1)-dimensional variable.
type Index []Level

// Build computes the index chain for the given rows and column positions.
// cols selects m+1 columns from each row; the result has m levels. This is a
// cumulative histogram, not a single-pass group-by: rows contributing to the
// same prefix may arrive from anywhere in the input, and a single row
// extends up to m keyed sets. Empty input yields m empty levels.
func Build(rows [][]string, cols []int) (Index, error) {
	if len(cols) < 2 {
		return nil, fmt.Errorf("sparse: need at least two columns, got %d", len(cols))
	}

	idx := NewIndex(len(cols) - 1)
	for n, row := range rows {
		for _, c := range cols {
			if c < 0 || c >= len(row) {
				return nil, fmt.Errorf("sparse: column %d out of range for row %d (len %d)", c, n, len(row))
			}
		}
		idx.addRow(row, cols)
	}
	return idx, nil
}

// NewIndex returns an index chain of m empty levels.
func NewIndex(m int) Index {
	idx := make(Index, m)
	for i := range idx {
		idx[i] = make(Level)
	}
	return idx
}

// addRow folds one row into every level of the chain.
func (idx Index) addRow(row []string, cols []int) {
	prefix := make(types.KeyTuple, 0, len(cols)-1)
	for level := 0; level < len(idx); level++ {
		prefix = append(prefix, row[cols[level]])
		key := prefix.Encode()
		set, ok := idx[level][key]
		if !ok {
			set = make(ValueSet)
			idx[level][key] = set
		}
		set.Add(row[cols[level+1]])
	}
}

// Merge unions other into idx level by level. Both chains must have the same
// depth. The union is commutative and associative, so merge order across
// chunks never changes the result.
func (idx Index) Merge(other Index) error {
	if len(idx) != len(other) {
		return fmt.Errorf("sparse: cannot merge chains of depth %d and %d", len(idx), len(other))
	}
	for level := range other {
		for key, src := range other[level] {
			dst, ok := idx[level][key]
			if !ok {
				dst = make(ValueSet, len(src))
				idx[level][key] = dst
			}
			for v := range src {
				dst.Add(v)
			}
		}
	}
	return nil
}

// Equal reports whether two chains contain exactly the same keys and sets.
func (idx Index) Equal(other Index) bool {
	if len(idx) != len(other) {
		return false
	}
	for level := range idx {
		if len(idx[level]) != len(other[level]) {
			return false
		}
		for key, set := range idx[level] {
			oset, ok := other[level][key]
			if !ok || len(set) != len(oset) {
				return false
			}
			for v := range set {
				if !oset.Contains(v) {
					return false
				}
			}
		}
	}
	return true
}

// Values returns the set for the given prefix tuple at the level matching
// the prefix length, or nil if the prefix was never observed.
func (idx Index) Values(prefix types.KeyTuple) ValueSet {
	level := len(prefix) - 1
	if level < 0 || level >= len(idx) {
		return nil
	}
	return idx[level][prefix.Encode()]
}

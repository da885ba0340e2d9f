// Package equation generates model constraints from pre-sorted relational
// rows. Every constraint family in the engine is an instance of one generic
// streaming group-by-fold: accumulate a linear expression per contiguous run
// of equal grouping keys, emit one constraint when the key changes.
package equation

import (
	"fmt"
	"strings"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/scenario"
	"github.com/sei-international/nemo/pkg/types"
)

// AddFunc folds one row's contribution into the group accumulator. The row
// carries the full field list; fields beyond the grouping key are payload.
type AddFunc func(acc *model.Expression, row scenario.Row) error

// RHSFunc produces the right-hand side expression bound to a completed
// group. Returning nil binds against zero.
type RHSFunc func(key types.KeyTuple) (*model.Expression, error)

// FoldSpec parameterizes one constraint family: the key length, comparator,
// per-row accumulation, and per-group binding. Eighty-odd families differ
// only in these fields.
type FoldSpec struct {
	// Name prefixes every emitted constraint; the group key is appended.
	Name string

	// KeyLen is the number of leading row fields forming the grouping key.
	// Zero folds all rows into a single group.
	KeyLen int

	// Sense is the comparator between the accumulator and the RHS.
	Sense model.Sense

	// Add folds a row into the group accumulator.
	Add AddFunc

	// RHS binds a completed group. nil binds against zero.
	RHS RHSFunc

	// VerifyOrder enables the cheap monotonicity check: keys must be
	// non-decreasing, which every re-appearance of an earlier key
	// violates. Without it, unsorted input silently splits or merges
	// groups — the documented fragility of the pattern.
	VerifyOrder bool
}

// Fold streams rows through the group-by-fold and emits one constraint per
// contiguous run of equal keys into m. It returns the number of constraints
// emitted. Zero rows emit zero constraints; a single-row group still emits
// exactly one.
//
// Precondition: rows are sorted ascending by their first KeyLen fields.
// The builder cannot verify this cheaply beyond the optional monotonicity
// check; the query layer guarantees it via ORDER BY.
func Fold(m *model.Model, spec FoldSpec, rows []scenario.Row) (int, error) {
	if spec.Add == nil {
		return 0, errors.NewValidationError(errors.CodeBadKeyLength, spec.Name+": no Add function")
	}

	var (
		currentKey types.KeyTuple
		keySeen    bool
		emitted    int
	)
	acc := model.NewExpression()

	emit := func() error {
		var rhs *model.Expression
		if spec.RHS != nil {
			var err error
			if rhs, err = spec.RHS(currentKey); err != nil {
				return err
			}
		}
		m.AddConstraint(constraintName(spec.Name, currentKey), acc, spec.Sense, rhs)
		acc.Reset()
		emitted++
		return nil
	}

	for i, row := range rows {
		if len(row.Fields) < spec.KeyLen {
			return emitted, errors.NewValidationError(errors.CodeBadKeyLength,
				fmt.Sprintf("%s: row %d has %d fields, key needs %d", spec.Name, i, len(row.Fields), spec.KeyLen))
		}
		rowKey := row.Key(spec.KeyLen)

		if keySeen && !rowKey.Equal(currentKey) {
			// Full field-wise comparison: groups sharing a leading field
			// must not be merged.
			if spec.VerifyOrder && rowKey.Compare(currentKey) < 0 {
				return emitted, errors.NewValidationError(errors.CodeUnsortedRows,
					fmt.Sprintf("%s: row %d key %v precedes %v", spec.Name, i, rowKey, currentKey))
			}
			if err := emit(); err != nil {
				return emitted, err
			}
		}
		if err := spec.Add(acc, row); err != nil {
			return emitted, fmt.Errorf("equation: %s: row %d: %w", spec.Name, i, err)
		}
		currentKey = rowKey.Clone()
		keySeen = true
	}

	if keySeen {
		if err := emit(); err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

// constraintName renders "family[k1,k2,...]" for logs and diagnostics.
func constraintName(family string, key types.KeyTuple) string {
	if len(key) == 0 {
		return family
	}
	return family + "[" + strings.Join(key, ",") + "]"
}

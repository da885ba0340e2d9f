package equation

import (
	"context"
	"fmt"

	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/scenario"
	"github.com/sei-international/nemo/pkg/types"
)

// Builder generates the engine's constraint families against one model.
// Constraint order is semantically significant downstream, so Builder is
// strictly sequential.
type Builder struct {
	DB *scenario.DB
	M  *model.Model

	// VerifyOrder enables the monotonic key check on every fold.
	VerifyOrder bool
}

func (b *Builder) spec(name string, keyLen int, sense model.Sense, add AddFunc, rhs RHSFunc) FoldSpec {
	return FoldSpec{
		Name:        name,
		KeyLen:      keyLen,
		Sense:       sense,
		Add:         add,
		RHS:         rhs,
		VerifyOrder: b.VerifyOrder,
	}
}

// varRHS binds a group against the single variable term indexed by its key.
func varRHS(v *model.Variable) RHSFunc {
	return func(key types.KeyTuple) (*model.Expression, error) {
		col, ok := v.Column(key)
		if !ok {
			return nil, fmt.Errorf("equation: %s has no tuple %v", v.Name(), key)
		}
		return model.NewExpression().AddTerm(col, 1), nil
	}
}

// coefficient extracts the row's val column, which coefficient-carrying
// families require to be non-NULL.
func coefficient(row scenario.Row) (float64, error) {
	if !row.HasVal {
		return 0, fmt.Errorf("equation: parameter row %v has NULL val", row.Fields)
	}
	return row.Val, nil
}

const accumulatedNewCapacityQuery = `
SELECT ol.r, ol.t, y.val, yy.val
FROM OperationalLife ol
CROSS JOIN YEAR y
CROSS JOIN YEAR yy
WHERE CAST(y.val AS INTEGER) - CAST(yy.val AS INTEGER) < ol.val
  AND CAST(yy.val AS INTEGER) <= CAST(y.val AS INTEGER)
ORDER BY ol.r, ol.t, y.val, yy.val`

// AccumulatedNewCapacity binds, for each (r,t,y), the sum of new capacity
// added within the technology's operating-life window ending at y to the
// accumulated-capacity variable.
func (b *Builder) AccumulatedNewCapacity(ctx context.Context, vnew, vacc *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, accumulatedNewCapacityQuery, 4)
	if err != nil {
		return 0, err
	}
	return b.accumulatedNewCapacity(rows, vnew, vacc)
}

func (b *Builder) accumulatedNewCapacity(rows []scenario.Row, vnew, vacc *model.Variable) (int, error) {
	add := func(acc *model.Expression, row scenario.Row) error {
		// Payload field is the vintage year yy; the term is the new
		// capacity built in that year.
		vintage := types.NewKeyTuple(row.Fields[0], row.Fields[1], row.Fields[3])
		col, ok := vnew.Column(vintage)
		if !ok {
			return fmt.Errorf("%s has no tuple %v", vnew.Name(), vintage)
		}
		acc.AddTerm(col, 1)
		return nil
	}
	return Fold(b.M, b.spec("CAa1_AccumulatedNewCapacity", 3, model.SenseEq, add, varRHS(vacc)), rows)
}

const totalActivityByModeQuery = `
SELECT DISTINCT oar.r, oar.t, l.val, oar.y, oar.m
FROM OutputActivityRatio oar
CROSS JOIN TIMESLICE l
ORDER BY oar.r, oar.t, l.val, oar.y, oar.m`

// TotalActivityByMode binds, for each (r,t,l,y), the sum of activity across
// modes of operation to the total-activity variable.
func (b *Builder) TotalActivityByMode(ctx context.Context, vact, vtot *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, totalActivityByModeQuery, 5)
	if err != nil {
		return 0, err
	}
	return b.totalActivityByMode(rows, vact, vtot)
}

func (b *Builder) totalActivityByMode(rows []scenario.Row, vact, vtot *model.Variable) (int, error) {
	add := func(acc *model.Expression, row scenario.Row) error {
		tuple := row.Key(4).Extend(row.Fields[4])
		col, ok := vact.Column(tuple)
		if !ok {
			return fmt.Errorf("%s has no tuple %v", vact.Name(), tuple)
		}
		acc.AddTerm(col, 1)
		return nil
	}
	return Fold(b.M, b.spec("EBa1_TotalActivityByMode", 4, model.SenseEq, add, varRHS(vtot)), rows)
}

const rateOfProductionByTechnologyQuery = `
SELECT oar.r, oar.t, l.val, oar.y, oar.f, oar.m, oar.val
FROM OutputActivityRatio oar
CROSS JOIN TIMESLICE l
WHERE oar.val <> 0
ORDER BY oar.r, oar.t, l.val, oar.y, oar.f, oar.m`

// RateOfProductionByTechnology binds, for each (r,t,l,y,f), the
// ratio-weighted sum of activity across modes to the per-technology
// production variable.
func (b *Builder) RateOfProductionByTechnology(ctx context.Context, vact, vprodtech *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, rateOfProductionByTechnologyQuery, 6)
	if err != nil {
		return 0, err
	}
	return b.rateOfProductionByTechnology(rows, vact, vprodtech)
}

func (b *Builder) rateOfProductionByTechnology(rows []scenario.Row, vact, vprodtech *model.Variable) (int, error) {
	add := func(acc *model.Expression, row scenario.Row) error {
		coef, err := coefficient(row)
		if err != nil {
			return err
		}
		tuple := types.NewKeyTuple(row.Fields[0], row.Fields[1], row.Fields[2], row.Fields[3], row.Fields[5])
		col, ok := vact.Column(tuple)
		if !ok {
			return fmt.Errorf("%s has no tuple %v", vact.Name(), tuple)
		}
		acc.AddTerm(col, coef)
		return nil
	}
	return Fold(b.M, b.spec("EBa2_RateOfProductionByTechnology", 5, model.SenseEq, add, varRHS(vprodtech)), rows)
}

const rateOfProductionQuery = `
SELECT q.r, q.l, q.f, q.y, q.src, q.aux FROM (
    SELECT DISTINCT oar.r AS r, l.val AS l, oar.f AS f, oar.y AS y, 'a' AS src, oar.t AS aux
    FROM OutputActivityRatio oar
    CROSS JOIN TIMESLICE l
    WHERE oar.val <> 0
  UNION ALL
    SELECT DISTINCT nc.r, l.val, oar.f, oar.y, 'n', nc.n
    FROM NodeConnection nc
    JOIN OutputActivityRatio oar ON oar.r = nc.r
    CROSS JOIN TIMESLICE l
    WHERE oar.val <> 0
) q
ORDER BY q.r, q.l, q.f, q.y, q.src, q.aux`

// RateOfProduction binds, for each (r,l,f,y), total production to the sum
// of per-technology production plus, where the region has connected nodes,
// nodal production. The two sources arrive merged into one pre-sorted
// stream; keys with no nodal rows degenerate to the per-technology terms
// alone.
func (b *Builder) RateOfProduction(ctx context.Context, vprodtech, vprodnodal, vprod *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, rateOfProductionQuery, 6)
	if err != nil {
		return 0, err
	}
	return b.rateOfProduction(rows, vprodtech, vprodnodal, vprod)
}

func (b *Builder) rateOfProduction(rows []scenario.Row, vprodtech, vprodnodal, vprod *model.Variable) (int, error) {
	add := func(acc *model.Expression, row scenario.Row) error {
		src, aux := row.Fields[4], row.Fields[5]
		var (
			v     *model.Variable
			tuple types.KeyTuple
		)
		switch src {
		case "a":
			v = vprodtech
			tuple = types.NewKeyTuple(row.Fields[0], aux, row.Fields[1], row.Fields[3], row.Fields[2])
		case "n":
			v = vprodnodal
			tuple = types.NewKeyTuple(aux, row.Fields[1], row.Fields[2], row.Fields[3])
		default:
			return fmt.Errorf("unknown source tag %q", src)
		}
		col, ok := v.Column(tuple)
		if !ok {
			return fmt.Errorf("%s has no tuple %v", v.Name(), tuple)
		}
		acc.AddTerm(col, 1)
		return nil
	}
	return Fold(b.M, b.spec("EBa3_RateOfProduction", 4, model.SenseEq, add, varRHS(vprod)), rows)
}

const storageLevelQuery = `
SELECT q.r, q.s, q.y, q.l, q.src, q.val FROM (
    SELECT r.val AS r, s.val AS s, ys.y AS y, ys.l AS l, 'c' AS src, ys.val AS val
    FROM REGION r
    CROSS JOIN STORAGE s
    CROSS JOIN YearSplit ys
  UNION ALL
    SELECT r.val, s.val, ys.y, ys.l, 'd', -ys.val
    FROM REGION r
    CROSS JOIN STORAGE s
    CROSS JOIN YearSplit ys
) q
ORDER BY q.r, q.s, q.y, q.l, q.src`

const storageStartQuery = `
SELECT sls.r, sls.s, sls.val FROM StorageLevelStart sls ORDER BY sls.r, sls.s`

// StorageLevelYearEnd nets year-split-weighted charge and discharge into
// the year-end storage level: for each (r,s,y), the net flow equals the
// level at year end minus the level carried in (the prior year's end, or
// the configured start level in the first year).
func (b *Builder) StorageLevelYearEnd(ctx context.Context, years []string, vcharge, vdischarge, vlevel *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, storageLevelQuery, 5)
	if err != nil {
		return 0, err
	}
	startRows, err := b.DB.QueryRows(ctx, storageStartQuery, 2)
	if err != nil {
		return 0, err
	}
	starts := make(map[string]float64, len(startRows))
	for _, r := range startRows {
		if r.HasVal {
			starts[r.Key(2).Encode()] = r.Val
		}
	}
	return b.storageLevelYearEnd(rows, years, starts, vcharge, vdischarge, vlevel)
}

func (b *Builder) storageLevelYearEnd(rows []scenario.Row, years []string, starts map[string]float64, vcharge, vdischarge, vlevel *model.Variable) (int, error) {
	prior := make(map[string]string, len(years))
	for i := 1; i < len(years); i++ {
		prior[years[i]] = years[i-1]
	}

	add := func(acc *model.Expression, row scenario.Row) error {
		coef, err := coefficient(row)
		if err != nil {
			return err
		}
		v := vcharge
		if row.Fields[4] == "d" {
			v = vdischarge
		}
		tuple := types.NewKeyTuple(row.Fields[0], row.Fields[1], row.Fields[3], row.Fields[2])
		col, ok := v.Column(tuple)
		if !ok {
			return fmt.Errorf("%s has no tuple %v", v.Name(), tuple)
		}
		acc.AddTerm(col, coef)
		return nil
	}

	rhs := func(key types.KeyTuple) (*model.Expression, error) {
		end, ok := vlevel.Column(key)
		if !ok {
			return nil, fmt.Errorf("%s has no tuple %v", vlevel.Name(), key)
		}
		expr := model.NewExpression().AddTerm(end, 1)
		r, s, y := key[0], key[1], key[2]
		if prev, ok := prior[y]; ok {
			carried, ok := vlevel.Column(types.NewKeyTuple(r, s, prev))
			if !ok {
				return nil, fmt.Errorf("%s has no tuple for prior year %s", vlevel.Name(), prev)
			}
			expr.AddTerm(carried, -1)
		} else {
			expr.AddConstant(-starts[types.NewKeyTuple(r, s).Encode()])
		}
		return expr, nil
	}

	return Fold(b.M, b.spec("S1_StorageLevelYearEnd", 3, model.SenseEq, add, rhs), rows)
}

const totalCostQuery = `
SELECT cc.r, cc.t, cc.y, cc.val FROM CapitalCost cc ORDER BY cc.r, cc.t, cc.y`

// TotalCost binds the capital-cost-weighted sum of all new capacity to the
// scalar cost variable the objective minimizes. A single group (empty key)
// spans every row.
func (b *Builder) TotalCost(ctx context.Context, vnew, vcost *model.Variable) (int, error) {
	rows, err := b.DB.QueryRows(ctx, totalCostQuery, 3)
	if err != nil {
		return 0, err
	}
	return b.totalCost(rows, vnew, vcost)
}

func (b *Builder) totalCost(rows []scenario.Row, vnew, vcost *model.Variable) (int, error) {
	add := func(acc *model.Expression, row scenario.Row) error {
		coef, err := coefficient(row)
		if err != nil {
			return err
		}
		col, ok := vnew.Column(row.Key(3))
		if !ok {
			return fmt.Errorf("%s has no tuple %v", vnew.Name(), row.Key(3))
		}
		acc.AddTerm(col, coef)
		return nil
	}
	return Fold(b.M, b.spec("C1_TotalCost", 0, model.SenseEq, add, varRHS(vcost)), rows)
}

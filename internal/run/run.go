// Package run wires one solve end to end: load the scenario, declare
// variables, generate constraints, solve, persist, and optionally archive.
package run

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sei-international/nemo/internal/config"
	"github.com/sei-international/nemo/internal/diagnose"
	"github.com/sei-international/nemo/internal/equation"
	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/persist"
	"github.com/sei-international/nemo/internal/scenario"
	"github.com/sei-international/nemo/internal/solve"
	"github.com/sei-international/nemo/internal/sparse"
	"github.com/sei-international/nemo/internal/storage"
)

// Summary reports what one run did.
type Summary struct {
	RunID       string
	Outcome     solve.Outcome
	Objective   float64
	Variables   int
	Constraints int
	Culprits    []string
	ArchiveKey  string
	Elapsed     time.Duration
}

// Runner executes solve runs for one configuration.
type Runner struct {
	cfg     *config.Config
	backend solve.Backend
}

// New validates the configuration and binds the solver backend.
func New(cfg *config.Config, backend solve.Backend) (*Runner, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewValidationError(errors.CodeUnexpected, "invalid configuration: "+err.Error())
	}
	if backend == nil {
		return nil, errors.NewValidationError(errors.CodeUnexpected, "no solver backend")
	}
	return &Runner{cfg: cfg, backend: backend}, nil
}

// Run executes one full solve. An infeasible model yields an error; when
// diagnosis is enabled the summary carries the isolated constraints.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if r.cfg.Solver.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Solver.TimeLimit)
		defer cancel()
	}

	db, err := scenario.Open(ctx, r.cfg.ScenarioPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sets, err := db.LoadSets(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("run: scenario %s: %d regions, %d technologies, %d years",
		r.cfg.ScenarioName(), len(sets.Regions), len(sets.Technologies), len(sets.Years))

	m := model.New()
	if err := r.declareVariables(ctx, db, m, sets); err != nil {
		return nil, err
	}
	constraints, err := r.buildConstraints(ctx, db, m, sets)
	if err != nil {
		return nil, err
	}
	log.Printf("run: model built: %d columns, %d constraints", m.NumColumns(), constraints)

	res, err := r.backend.Solve(ctx, m)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Outcome:     res.Outcome,
		Objective:   res.Objective,
		Variables:   len(m.Variables()),
		Constraints: constraints,
		Elapsed:     time.Since(start),
	}

	if res.Outcome != solve.OutcomeOptimal {
		if res.Outcome.Infeasible() && r.cfg.Solver.Diagnose {
			d := &diagnose.Diagnoser{Backend: r.backend}
			diag, derr := d.Diagnose(ctx, m)
			if diag != nil {
				summary.Culprits = diag.Culprits
			}
			if derr != nil {
				return summary, derr
			}
			return summary, errors.NewSolveError(errors.CodeNoSolution,
				fmt.Sprintf("model is infeasible; %d constraints isolated", len(summary.Culprits)), nil)
		}
		return summary, errors.NewSolveError(errors.CodeNoSolution,
			"solve finished without an optimal solution: "+res.Outcome.String(), nil)
	}

	runID, err := r.persistResults(ctx, m, res, summary)
	if err != nil {
		return summary, err
	}
	summary.RunID = runID

	if r.cfg.Archive.Enabled {
		key, err := r.archive(ctx, runID)
		if err != nil {
			return summary, err
		}
		summary.ArchiveKey = key
	}

	summary.Elapsed = time.Since(start)
	log.Printf("run: %s finished in %s: objective %.6g", runID, summary.Elapsed, summary.Objective)
	return summary, nil
}

// declareVariables sets up the decision variables over the loaded sets.
// With RestrictVars on, the activity-indexed variables are declared only
// over tuples observed in the scenario's activity ratios.
func (r *Runner) declareVariables(ctx context.Context, db *scenario.DB, m *model.Model, sets *scenario.Sets) error {
	inf := math.Inf(1)

	dense := func(name string, dims []string, domains ...[]string) error {
		_, err := m.AddDenseVariable(name, dims, model.ContinuousKind, 0, inf, domains...)
		return err
	}

	if err := dense("vnewcapacity", []string{"r", "t", "y"}, sets.Regions, sets.Technologies, sets.Years); err != nil {
		return err
	}
	if err := dense("vaccumulatednewcapacity", []string{"r", "t", "y"}, sets.Regions, sets.Technologies, sets.Years); err != nil {
		return err
	}

	activityDims := []string{"r", "t", "l", "y", "m"}
	if r.cfg.Model.RestrictVars {
		support, err := r.activitySupport(ctx, db)
		if err != nil {
			return err
		}
		if _, err := m.AddSparseVariable("vrateofactivity", activityDims, model.ContinuousKind, 0, inf, support); err != nil {
			return err
		}
	} else {
		if err := dense("vrateofactivity", activityDims,
			sets.Regions, sets.Technologies, sets.TimeSlices, sets.Years, sets.Modes); err != nil {
			return err
		}
	}

	if err := dense("vrateoftotalactivity", []string{"r", "t", "l", "y"},
		sets.Regions, sets.Technologies, sets.TimeSlices, sets.Years); err != nil {
		return err
	}
	if err := dense("vrateofproductionbytechnology", []string{"r", "t", "l", "y", "f"},
		sets.Regions, sets.Technologies, sets.TimeSlices, sets.Years, sets.Fuels); err != nil {
		return err
	}
	if err := dense("vrateofproduction", []string{"r", "l", "f", "y"},
		sets.Regions, sets.TimeSlices, sets.Fuels, sets.Years); err != nil {
		return err
	}
	if len(sets.Nodes) > 0 {
		if err := dense("vrateofproductionnodal", []string{"n", "l", "f", "y"},
			sets.Nodes, sets.TimeSlices, sets.Fuels, sets.Years); err != nil {
			return err
		}
	}
	if len(sets.Storages) > 0 {
		for _, name := range []string{"vrateofstoragecharge", "vrateofstoragedischarge"} {
			if err := dense(name, []string{"r", "s", "l", "y"},
				sets.Regions, sets.Storages, sets.TimeSlices, sets.Years); err != nil {
				return err
			}
		}
		if err := dense("vstoragelevelyearend", []string{"r", "s", "y"},
			sets.Regions, sets.Storages, sets.Years); err != nil {
			return err
		}
	}

	if _, err := m.AddScalarVariable("vtotalcost", model.ContinuousKind, 0, inf); err != nil {
		return err
	}
	return m.SetObjective("vtotalcost", false)
}

const activitySupportQuery = `
SELECT DISTINCT oar.r, oar.t, l.val, oar.y, oar.m
FROM OutputActivityRatio oar
CROSS JOIN TIMESLICE l`

// activitySupport builds the sparse support chain for the activity
// variable from the observed activity-ratio tuples.
func (r *Runner) activitySupport(ctx context.Context, db *scenario.DB) (sparse.Index, error) {
	rows, err := db.QueryRows(ctx, activitySupportQuery, 5)
	if err != nil {
		return nil, err
	}
	return sparse.BuildParallel(scenario.FieldMatrix(rows), []int{0, 1, 2, 3, 4}, r.cfg.Model.Workers)
}

// buildConstraints generates every constraint family in a fixed order.
func (r *Runner) buildConstraints(ctx context.Context, db *scenario.DB, m *model.Model, sets *scenario.Sets) (int, error) {
	b := &equation.Builder{DB: db, M: m, VerifyOrder: r.cfg.Model.VerifyOrder}

	lookup := func(name string) *model.Variable {
		v, err := m.Variable(name)
		if err != nil {
			return nil
		}
		return v
	}
	vnew := lookup("vnewcapacity")
	vacc := lookup("vaccumulatednewcapacity")
	vact := lookup("vrateofactivity")
	vtot := lookup("vrateoftotalactivity")
	vprodtech := lookup("vrateofproductionbytechnology")
	vprod := lookup("vrateofproduction")
	vcost := lookup("vtotalcost")

	total := 0
	families := []func() (int, error){
		func() (int, error) { return b.AccumulatedNewCapacity(ctx, vnew, vacc) },
		func() (int, error) { return b.TotalActivityByMode(ctx, vact, vtot) },
		func() (int, error) { return b.RateOfProductionByTechnology(ctx, vact, vprodtech) },
		func() (int, error) { return b.TotalCost(ctx, vnew, vcost) },
	}
	if vnodal := lookup("vrateofproductionnodal"); vnodal != nil {
		families = append(families, func() (int, error) {
			return b.RateOfProduction(ctx, vprodtech, vnodal, vprod)
		})
	}
	if vlevel := lookup("vstoragelevelyearend"); vlevel != nil {
		vcharge := lookup("vrateofstoragecharge")
		vdischarge := lookup("vrateofstoragedischarge")
		families = append(families, func() (int, error) {
			return b.StorageLevelYearEnd(ctx, sets.Years, vcharge, vdischarge, vlevel)
		})
	}

	for _, family := range families {
		n, err := family()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// persistResults writes the selected variables and the run metadata back to
// the scenario database.
func (r *Runner) persistResults(ctx context.Context, m *model.Model, res *solve.Result, summary *Summary) (string, error) {
	p, err := persist.Open(r.cfg.ScenarioPath)
	if err != nil {
		return "", err
	}
	defer p.Close()

	err = p.SaveVariables(ctx, m, res, r.cfg.Results.Variables, persist.Options{
		ReportZeros: r.cfg.Results.ReportZeros,
		Workers:     r.cfg.Model.Workers,
	})
	if err != nil {
		return "", err
	}

	return p.SaveMetadata(ctx, persist.RunMetadata{
		Scenario:    r.cfg.ScenarioName(),
		Outcome:     res.Outcome.String(),
		Objective:   res.Objective,
		Variables:   r.cfg.Results.Variables,
		Constraints: summary.Constraints,
		Elapsed:     summary.Elapsed,
		Solver:      map[string]string{"backend": r.cfg.Solver.Backend},
	})
}

// archive uploads the solved database to the configured archive.
func (r *Runner) archive(ctx context.Context, runID string) (string, error) {
	var (
		a   storage.Archive
		err error
	)
	switch r.cfg.Archive.Type {
	case "s3":
		a, err = storage.NewS3Archive(ctx, r.cfg.Archive.S3.Bucket, storage.S3Config{
			Region:   r.cfg.Archive.S3.Region,
			Endpoint: r.cfg.Archive.S3.Endpoint,
		})
	default:
		a, err = storage.NewLocalArchive(r.cfg.Archive.Path)
	}
	if err != nil {
		return "", err
	}
	return storage.ArchiveRun(ctx, a, r.cfg.ScenarioPath, r.cfg.ScenarioName(), runID)
}

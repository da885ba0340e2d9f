// Package persist writes solved variable values back to the scenario
// database. Each saved variable gets its own table (one TEXT column per
// dimension, a REAL val, a solvedtm timestamp), and the whole save is one
// transaction: a failure on any table leaves the database untouched.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/internal/model"
	"github.com/sei-international/nemo/internal/solve"
)

// Options controls a save.
type Options struct {
	// ReportZeros writes rows whose value is exactly zero. Off by default:
	// absent rows read back as zero, and dense variables are mostly zero.
	ReportZeros bool

	// Workers bounds the parallel value-extraction phase. Zero or negative
	// selects GOMAXPROCS.
	Workers int

	// SolvedTime stamps every row. Zero value means time.Now.
	SolvedTime time.Time
}

// Persister owns a read-write connection to the results database, which is
// ordinarily the scenario database itself.
type Persister struct {
	db   *sql.DB
	path string
}

// Open opens the results database for writing.
func Open(path string) (*Persister, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewPersistError(errors.CodeOpenFailed, "failed to open results database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewPersistError(errors.CodeOpenFailed, "failed to ping results database", err)
	}
	return &Persister{db: db, path: path}, nil
}

// Path returns the database file path.
func (p *Persister) Path() string { return p.path }

// Close releases the connection.
func (p *Persister) Close() error { return p.db.Close() }

// record is one extracted result row: dimension values plus the solved value.
type record struct {
	key []string
	val float64
}

// dump is the extracted content of one variable, ready for the writer.
type dump struct {
	v    *model.Variable
	rows []record
}

// SaveVariables extracts the solution values of the named variables and
// writes one table per variable inside a single transaction. An unknown
// name fails the whole save. Passing no names saves every variable.
func (p *Persister) SaveVariables(ctx context.Context, m *model.Model, res *solve.Result, names []string, opts Options) error {
	if res == nil || res.Values == nil {
		return errors.NewPersistError(errors.CodeNoSolution, "no solution values to save", nil)
	}

	vars, err := selectVariables(m, names)
	if err != nil {
		return err
	}

	// Extraction is read-only over disjoint column blocks, so it
	// parallelizes freely; writing stays on a single goroutine because
	// the transaction is bound to one connection.
	dumps := make([]dump, len(vars))
	g, gctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i, v := range vars {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dumps[i] = extract(v, res, opts.ReportZeros)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "value extraction failed", err)
	}

	solvedtm := opts.SolvedTime
	if solvedtm.IsZero() {
		solvedtm = time.Now()
	}
	stamp := solvedtm.UTC().Format("2006-01-02 15:04:05.000")

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "failed to begin transaction", err)
	}
	for _, d := range dumps {
		if err := writeTable(ctx, tx, d, stamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "failed to commit results", err)
	}

	total := 0
	for _, d := range dumps {
		total += len(d.rows)
	}
	log.Printf("persist: saved %d variables, %d rows", len(dumps), total)
	return nil
}

func selectVariables(m *model.Model, names []string) ([]*model.Variable, error) {
	if len(names) == 0 {
		return m.Variables(), nil
	}
	vars := make([]*model.Variable, 0, len(names))
	for _, name := range names {
		v, err := m.Variable(name)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// extract walks a variable's column block and keeps the rows worth writing.
func extract(v *model.Variable, res *solve.Result, reportZeros bool) dump {
	d := dump{v: v}
	for i := 0; i < v.Size(); i++ {
		val := res.Value(v.ColumnAt(i))
		if val == 0 && !reportZeros {
			continue
		}
		d.rows = append(d.rows, record{key: v.Tuple(i), val: val})
	}
	return d
}

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// writeTable drops, recreates, and fills one variable's result table inside
// the caller's transaction.
func writeTable(ctx context.Context, tx *sql.Tx, d dump, stamp string) error {
	name := d.v.Name()
	dims := d.v.Dims()
	if !columnPattern.MatchString(name) {
		return errors.NewPersistError(errors.CodeWriteFailed, "invalid result table name: "+name, nil)
	}
	for _, dim := range dims {
		if !columnPattern.MatchString(dim) {
			return errors.NewPersistError(errors.CodeWriteFailed,
				fmt.Sprintf("invalid dimension column %q in %s", dim, name), nil)
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "failed to drop "+name, err)
	}

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE " + name + " (")
	for _, dim := range dims {
		ddl.WriteString(dim + " TEXT, ")
	}
	ddl.WriteString("val REAL, solvedtm TEXT)")
	if _, err := tx.ExecContext(ctx, ddl.String()); err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "failed to create "+name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(dims)+2), ", ")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+name+" VALUES ("+placeholders+")")
	if err != nil {
		return errors.NewPersistError(errors.CodeWriteFailed, "failed to prepare insert for "+name, err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(dims)+2)
	for _, r := range d.rows {
		for i, k := range r.key {
			args[i] = k
		}
		args[len(dims)] = r.val
		args[len(dims)+1] = stamp
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.NewPersistError(errors.CodeWriteFailed, "failed to insert into "+name, err)
		}
	}
	return nil
}

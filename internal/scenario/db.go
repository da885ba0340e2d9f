// Package scenario provides read-only access to the scenario database: set
// tables naming the model dimensions and parameter tables with one row per
// applicable key tuple plus a numeric val column. Requested orderings are
// passed through to SQLite verbatim and honored exactly.
package scenario

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sei-international/nemo/internal/errors"
	"github.com/sei-international/nemo/pkg/types"
)

// DB wraps a read-only connection to a scenario database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the scenario database read-only. The engine never mutates the
// source store; writes happen through the persister's own connection.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.NewScenarioError(errors.CodeOpenFailed, "failed to open scenario database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewScenarioError(errors.CodeOpenFailed, "failed to ping scenario database", err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close releases the connection.
func (d *DB) Close() error { return d.db.Close() }

// Row is one relational row of a parameter query: ordered string dimension
// fields followed by an optional numeric val column. A NULL val is carried
// as HasVal=false rather than zero.
type Row struct {
	Fields []string
	Val    float64
	HasVal bool
}

// Key returns the first n fields as a KeyTuple. The result shares storage
// with the row.
func (r Row) Key(n int) types.KeyTuple {
	return types.KeyTuple(r.Fields[:n])
}

// QueryRows runs a parameter query and scans each result row into fieldCols
// string fields plus, when the query selects one more column, a val column.
// The rows are returned in exactly the order the query produced them.
func (d *DB) QueryRows(ctx context.Context, query string, fieldCols int, args ...interface{}) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewScenarioError(errors.CodeQueryFailed, "query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewScenarioError(errors.CodeQueryFailed, "failed to read columns", err)
	}
	if len(cols) < fieldCols || len(cols) > fieldCols+1 {
		return nil, errors.NewScenarioError(errors.CodeQueryFailed,
			fmt.Sprintf("query returned %d columns, expected %d or %d", len(cols), fieldCols, fieldCols+1), nil)
	}
	hasVal := len(cols) == fieldCols+1

	var out []Row
	fields := make([]sql.NullString, fieldCols)
	var val sql.NullFloat64
	dest := make([]interface{}, 0, len(cols))
	for i := range fields {
		dest = append(dest, &fields[i])
	}
	if hasVal {
		dest = append(dest, &val)
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.NewScenarioError(errors.CodeQueryFailed, "scan failed", err)
		}
		r := Row{Fields: make([]string, fieldCols)}
		for i, f := range fields {
			r.Fields[i] = f.String
		}
		if hasVal && val.Valid {
			r.Val = val.Float64
			r.HasVal = true
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewScenarioError(errors.CodeQueryFailed, "row iteration failed", err)
	}
	return out, nil
}

// FieldMatrix projects rows onto their string fields for the sparse index
// builder.
func FieldMatrix(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Fields
	}
	return out
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent guards table names interpolated into SQL. Set and result table
// names come from configuration, not user queries, but the check is cheap.
func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

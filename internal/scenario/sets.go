package scenario

import (
	"context"
	"fmt"

	"github.com/sei-international/nemo/internal/errors"
)

// Standard set table names in a scenario database.
const (
	TableRegion     = "REGION"
	TableTechnology = "TECHNOLOGY"
	TableFuel       = "FUEL"
	TableYear       = "YEAR"
	TableTimeSlice  = "TIMESLICE"
	TableMode       = "MODE_OF_OPERATION"
	TableStorage    = "STORAGE"
	TableNode       = "NODE"
)

// Sets holds the members of every standard dimension set, each in the
// ascending order the set table produced.
type Sets struct {
	Regions      []string
	Technologies []string
	Fuels        []string
	Years        []string
	TimeSlices   []string
	Modes        []string
	Storages     []string
	Nodes        []string
}

// Set loads the members of one set table, ordered ascending by val.
func (d *DB) Set(ctx context.Context, table string) ([]string, error) {
	if !validIdent(table) {
		return nil, errors.NewScenarioError(errors.CodeSetNotFound, "invalid set table name: "+table, nil)
	}
	rows, err := d.QueryRows(ctx, fmt.Sprintf("SELECT val FROM %s ORDER BY val", table), 1)
	if err != nil {
		return nil, errors.NewScenarioError(errors.CodeSetNotFound, "failed to load set "+table, err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Fields[0]
	}
	return out, nil
}

// LoadSets loads all standard sets. Storage and node sets are optional in
// many scenarios; a missing table loads as an empty set.
func (d *DB) LoadSets(ctx context.Context) (*Sets, error) {
	s := &Sets{}
	required := []struct {
		table string
		dst   *[]string
	}{
		{TableRegion, &s.Regions},
		{TableTechnology, &s.Technologies},
		{TableFuel, &s.Fuels},
		{TableYear, &s.Years},
		{TableTimeSlice, &s.TimeSlices},
		{TableMode, &s.Modes},
	}
	for _, set := range required {
		members, err := d.Set(ctx, set.table)
		if err != nil {
			return nil, err
		}
		*set.dst = members
	}

	optional := []struct {
		table string
		dst   *[]string
	}{
		{TableStorage, &s.Storages},
		{TableNode, &s.Nodes},
	}
	for _, set := range optional {
		members, err := d.Set(ctx, set.table)
		if err != nil {
			continue
		}
		*set.dst = members
	}
	return s, nil
}

package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/sei-international/nemo/internal/errors"
)

// metadataTable holds one row per solve run, keyed by a UUID. The payload
// is Snappy-compressed JSON so arbitrarily large solver configuration can
// ride along without bloating the database.
const metadataTable = "solve_metadata"

// RunMetadata describes one solve run for the metadata table.
type RunMetadata struct {
	Scenario    string            `json:"scenario"`
	Outcome     string            `json:"outcome"`
	Objective   float64           `json:"objective"`
	Variables   []string          `json:"variables,omitempty"`
	Constraints int               `json:"constraints"`
	Elapsed     time.Duration     `json:"elapsed_ns"`
	Solver      map[string]string `json:"solver,omitempty"`
}

// SaveMetadata appends a run record and returns its generated run ID.
func (p *Persister) SaveMetadata(ctx context.Context, meta RunMetadata) (string, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", errors.NewPersistError(errors.CodeWriteFailed, "failed to encode run metadata", err)
	}
	compressed := snappy.Encode(nil, payload)

	runID := uuid.New().String()
	created := time.Now().UTC().Format(time.RFC3339)

	_, err = p.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+metadataTable+` (runid TEXT PRIMARY KEY, created TEXT, meta BLOB)`)
	if err != nil {
		return "", errors.NewPersistError(errors.CodeWriteFailed, "failed to create metadata table", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO `+metadataTable+` (runid, created, meta) VALUES (?, ?, ?)`,
		runID, created, compressed)
	if err != nil {
		return "", errors.NewPersistError(errors.CodeWriteFailed, "failed to insert run metadata", err)
	}
	return runID, nil
}

// LoadMetadata reads back one run record by ID.
func (p *Persister) LoadMetadata(ctx context.Context, runID string) (*RunMetadata, error) {
	var blob []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT meta FROM `+metadataTable+` WHERE runid = ?`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.NewPersistError(errors.CodeNoSolution, "no metadata for run "+runID, nil)
	}
	if err != nil {
		return nil, errors.NewPersistError(errors.CodeQueryFailed, "failed to read run metadata", err)
	}

	payload, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, errors.NewPersistError(errors.CodeQueryFailed, "failed to decompress run metadata", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, errors.NewPersistError(errors.CodeQueryFailed, "failed to decode run metadata", err)
	}
	return &meta, nil
}

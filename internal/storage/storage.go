// Package storage archives solved scenario databases to object storage so
// runs survive the machine they were computed on. Implementations cover the
// local filesystem and S3.
package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/sei-international/nemo/internal/errors"
)

// Archive stores and retrieves result database files by object key.
type Archive interface {
	// Upload copies the local file to objectKey.
	Upload(ctx context.Context, localPath, objectKey string) error

	// Download copies the object at objectKey to localPath.
	Download(ctx context.Context, objectKey, localPath string) error

	// Exists reports whether objectKey is present.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Delete removes objectKey. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectKey string) error

	// List returns all object keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ArchiveKey names the archived copy of one run: the scenario name scopes
// the run ID so repeated solves of the same scenario sit side by side.
func ArchiveKey(scenario, runID string) string {
	return path.Join(scenario, runID+".sqlite")
}

// ArchiveRun uploads the results database under its run key and verifies
// the object landed.
func ArchiveRun(ctx context.Context, a Archive, dbPath, scenario, runID string) (string, error) {
	key := ArchiveKey(scenario, runID)
	if err := a.Upload(ctx, dbPath, key); err != nil {
		return "", errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to archive run %s", runID), err)
	}
	ok, err := a.Exists(ctx, key)
	if err != nil {
		return "", errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to verify archived run %s", runID), err)
	}
	if !ok {
		return "", errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("archived run %s missing after upload", runID), nil)
	}
	return key, nil
}

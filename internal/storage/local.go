package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sei-international/nemo/internal/errors"
)

// LocalArchive implements Archive on a filesystem directory. It is the
// default archive and the one the tests exercise.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the base directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed, "failed to create archive directory", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

func (l *LocalArchive) fullPath(objectKey string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectKey))
}

// Upload copies the local file under the archive root.
func (l *LocalArchive) Upload(ctx context.Context, localPath, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := l.fullPath(objectKey)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to create archive path", err)
	}
	if err := copyFile(localPath, dest); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to copy into archive", err)
	}
	return nil
}

// Download copies an archived object back out.
func (l *LocalArchive) Download(ctx context.Context, objectKey, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := l.fullPath(objectKey)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return errors.NewStorageError(errors.CodeObjectNotFound, "no archived object "+objectKey, nil)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to create destination path", err)
	}
	if err := copyFile(src, localPath); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to copy out of archive", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (l *LocalArchive) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.fullPath(objectKey))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the object; deleting a missing object succeeds.
func (l *LocalArchive) Delete(ctx context.Context, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(l.fullPath(objectKey))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to delete archived object", err)
	}
	return nil
}

// List walks the archive for keys under prefix.
func (l *LocalArchive) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	root := l.fullPath(prefix)
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.basePath, p)
			if err != nil {
				return err
			}
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

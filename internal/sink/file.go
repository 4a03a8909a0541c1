package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes artifacts under a root directory.
type FileSink struct {
	root string
}

// NewFileSink creates root if needed.
func NewFileSink(root string) (*FileSink, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSink{root: root}, nil
}

func (s *FileSink) Root() string { return s.root }

func (s *FileSink) Write(ctx context.Context, a Artifact) error {
	objs, err := Objects(a)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(filepath.Join(s.root, o.Name), o.Data); err != nil {
			return err
		}
	}
	return nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place, so readers never observe a partial artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

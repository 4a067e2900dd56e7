package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/1ureka/groundlink/internal/util"
)

// Dir writes artifacts as files under a local directory.
type Dir struct {
	Path string
}

var _ Sink = Dir{}

// Put writes data to a temporary file and renames it into place so a
// partially written artifact is never visible under its final name.
func (d Dir) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactIO, err)
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactIO, err)
	}

	final := filepath.Join(d.Path, filepath.Base(name))
	tmp, err := os.CreateTemp(d.Path, ".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrArtifactIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrArtifactIO, name, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("%w: rename %s: %w", ErrArtifactIO, name, err)
	}

	util.LogDebug("saved %s (%d bytes, %s)", final, len(data), util.Digest(data))
	return nil
}

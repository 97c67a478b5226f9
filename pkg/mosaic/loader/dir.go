package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
)

// Dir loads fragments named <name><ext> from a file system.
type Dir struct {
	fsys fs.FS
	opts options
}

// NewDir creates a loader over fsys, usually os.DirFS(path) or an embed.FS.
func NewDir(fsys fs.FS, opts ...Option) *Dir {
	return &Dir{fsys: fsys, opts: buildOptions(opts)}
}

// Load implements mosaic.Loader.
func (d *Dir) Load(ctx context.Context, name string) (mosaic.Definition, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := fs.ReadFile(d.fsys, name+d.opts.ext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read view %s: %w", name, err)
	}
	f, err := ParseFragment(name, src, d.opts.expander)
	if err != nil {
		return nil, err
	}
	return f, nil
}

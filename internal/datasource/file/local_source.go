// Package file implements local filesystem sources and sinks.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tabsql/internal/datasource"
)

// Local is a filesystem data source and sink bound to one path.
type Local struct{ path string }

var (
	_ datasource.Source = (*Local)(nil)
	_ datasource.Sink   = (*Local)(nil)
)

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the path for reading. A canceled context short-circuits
// before the filesystem is touched. Filesystem errors are wrapped with the
// path and keep their identity (errors.Is(err, fs.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Create opens a temporary file next to the target path. The target is
// replaced only when Commit succeeds, so a failed run leaves no partial
// output behind.
func (l *Local) Create(ctx context.Context) (datasource.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", l.path, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.path, err)
	}
	return &pendingFile{f: f, target: l.path}, nil
}

type pendingFile struct {
	f      *os.File
	target string
	done   bool
}

func (p *pendingFile) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *pendingFile) Commit() error {
	if p.done {
		return fmt.Errorf("commit %s: already finished", p.target)
	}
	p.done = true
	if err := p.f.Sync(); err != nil {
		p.discard()
		return fmt.Errorf("commit %s: %w", p.target, err)
	}
	if err := p.f.Close(); err != nil {
		_ = os.Remove(p.f.Name())
		return fmt.Errorf("commit %s: %w", p.target, err)
	}
	if err := os.Rename(p.f.Name(), p.target); err != nil {
		_ = os.Remove(p.f.Name())
		return fmt.Errorf("commit %s: %w", p.target, err)
	}
	return nil
}

func (p *pendingFile) Abort() error {
	if p.done {
		return nil
	}
	p.done = true
	return p.discard()
}

func (p *pendingFile) discard() error {
	cerr := p.f.Close()
	if err := os.Remove(p.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return cerr
}

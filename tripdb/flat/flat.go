package flat

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempPattern marks in-flight atomic writes. Leftover temp files
// (from a crash between write and rename) carry their final name as prefix,
// so per-token cleanup globs catch them too.
const TempPattern = ".tmp"

// Flat is flat-file storage rooted at a directory.
type Flat struct {
	// path is the storage directory. It includes the root directory.
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	// If root is not absolute, make it absolute.
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

func (f *Flat) Joining(paths ...string) *Flat {
	return &Flat{path: filepath.Join(append([]string{f.path}, paths...)...)}
}

// Exists returns true if the directory exists.
func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

// WriteFileAtomic writes a file under name such that the final name is never
// partially visible: content goes to a temp file in the same directory, which
// is synced and then renamed over the final name. The rename is assumed atomic
// at the filesystem level. On any error the temp file is removed and the
// final name is untouched.
func (f *Flat) WriteFileAtomic(name string, write func(w io.Writer) error) error {
	if err := f.MkdirAll(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.path, name+TempPattern+"*")
	if err != nil {
		return err
	}
	abort := func(err error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("atomic write %s: %w", name, err)
	}
	if err := write(tmp); err != nil {
		return abort(err)
	}
	if err := tmp.Sync(); err != nil {
		return abort(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("atomic write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.path, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("atomic write %s: %w", name, err)
	}
	return nil
}

// Glob lists entries in the directory matching pattern, sorted (filepath.Glob
// sorts lexically, which is what segment sequence ordering relies on).
func (f *Flat) Glob(pattern string) ([]string, error) {
	return filepath.Glob(filepath.Join(f.path, pattern))
}

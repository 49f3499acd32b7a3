package fswalk

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"path/filepath"
	"sync"

	"reel/internal/failure"
)

// Entry is one non-directory file found under the root, or a subtree the
// walk could not enter (Err set, Dir naming the subtree).
type Entry struct {
	Dir  string
	Name string
	Err  error
}

// Walker traverses a directory tree depth-first in lexical order.
type Walker struct {
	root string

	mu      sync.Mutex
	partial bool
	denied  []string
}

// New returns a walker rooted at root.
func New(root string) *Walker {
	return &Walker{root: root}
}

// Root returns the directory the walker starts from.
func (w *Walker) Root() string {
	return w.root
}

// Entries lazily yields every file under the root. Each call restarts the
// walk. ctx is checked before every yield; once it is done the sequence ends
// and Partial reports true. Subtrees that cannot be read produce one Entry
// with Err wrapping failure.ErrAccessDenied (or the underlying error) and are
// skipped while the walk continues with their siblings.
func (w *Walker) Entries(ctx context.Context) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		w.mu.Lock()
		w.partial = false
		w.denied = nil
		w.mu.Unlock()

		_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				w.markPartial()
				return filepath.SkipAll
			}
			if err != nil {
				w.markDenied(path)
				entry := Entry{Dir: path, Err: classify(path, err)}
				if !yield(entry) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !yield(Entry{Dir: filepath.Dir(path), Name: d.Name()}) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Partial reports whether the last walk stopped early because its context
// was cancelled.
func (w *Walker) Partial() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.partial
}

// Denied lists the paths skipped during the last walk.
func (w *Walker) Denied() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.denied...)
}

func (w *Walker) markPartial() {
	w.mu.Lock()
	w.partial = true
	w.mu.Unlock()
}

func (w *Walker) markDenied(path string) {
	w.mu.Lock()
	w.denied = append(w.denied, path)
	w.mu.Unlock()
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return failure.Wrap(failure.ErrAccessDenied, "walk", path, err)
	}
	return failure.Wrap(nil, "walk", path, err)
}

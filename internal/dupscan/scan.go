package dupscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"reel/internal/failure"
	"reel/internal/fswalk"
	"reel/internal/job"
	"reel/internal/logging"
)

// Phase labels reported while a scan runs.
const (
	PhaseCounting = "counting"
	PhaseScanning = "scanning"
	PhaseSorting  = "sorting"
)

const defaultProgressEvery = 100

// Duplicate is a filename found in more than one directory.
type Duplicate struct {
	Name string   `json:"name"`
	Dirs []string `json:"dirs"`
}

// Result is the outcome of a completed scan. Duplicates are ordered by
// descending directory count; ties keep traversal order.
type Result struct {
	Root       string      `json:"root"`
	Duplicates []Duplicate `json:"duplicates"`
	TotalFiles int         `json:"total_files"`
	// Skipped lists subtrees that could not be read and were left out.
	Skipped []string `json:"skipped,omitempty"`
}

// Job scans a directory tree for filenames that occur in several directories.
type Job struct {
	root          string
	progressEvery int
	logger        *slog.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithProgressEvery sets the maximum number of files between progress reports.
func WithProgressEvery(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.progressEvery = n
		}
	}
}

// WithLogger sets the job's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// New validates root and returns a scan job for it. A missing root or one
// that is not a directory is invalid input; an unreadable root is denied.
func New(root string, opts ...Option) (*Job, error) {
	if strings.TrimSpace(root) == "" {
		return nil, failure.Wrap(failure.ErrInvalidInput, "scan", "root directory required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, failure.Wrap(failure.ErrInvalidInput, "scan", "resolve root", err)
	}
	if err := checkRoot(abs); err != nil {
		return nil, err
	}

	j := &Job{root: abs, progressEvery: defaultProgressEvery, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = logging.NewComponentLogger(j.logger, "scan")
	return j, nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return failure.Wrap(failure.ErrAccessDenied, "scan", root, err)
	case err != nil:
		return failure.Wrap(failure.ErrInvalidInput, "scan", root, err)
	case !info.IsDir():
		return failure.Wrap(failure.ErrInvalidInput, "scan", root+" is not a directory", nil)
	}
	dir, err := os.Open(root)
	if err != nil {
		return failure.Wrap(failure.ErrAccessDenied, "scan", root, err)
	}
	defer dir.Close()
	if _, err := dir.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return failure.Wrap(failure.ErrAccessDenied, "scan", root, err)
	}
	return nil
}

// Root returns the absolute directory being scanned.
func (j *Job) Root() string { return j.root }

// Kind implements job.Body.
func (j *Job) Kind() job.Kind { return job.KindScan }

// Run counts the files under the root, then walks the tree again building a
// name index. It returns a *Result, or an error wrapping context.Canceled
// when cancelled during either pass.
func (j *Job) Run(ctx context.Context, progress job.Reporter) (any, error) {
	logger := logging.WithContext(ctx, j.logger).With(logging.String("root", j.root))
	walker := fswalk.New(j.root)
	skipped := newPathSet()

	progress.Report(0, PhaseCounting, "counting files")
	total := 0
	for entry := range walker.Entries(ctx) {
		if entry.Err != nil {
			if entry.Dir == j.root {
				return nil, failure.Wrap(failure.ErrAccessDenied, "scan", "read root", entry.Err)
			}
			skipped.add(entry.Dir)
			continue
		}
		total++
		if total%j.progressEvery == 0 {
			progress.Report(0, PhaseCounting, fmt.Sprintf("%d files found", total))
		}
	}
	if walker.Partial() || ctx.Err() != nil {
		return nil, fmt.Errorf("scan cancelled while counting: %w", context.Canceled)
	}
	logger.Debug("count complete", logging.Int("total_files", total))

	index := newNameIndex()
	processed := 0
	progress.Report(0, PhaseScanning, fmt.Sprintf("0 of %d files", total))
	for entry := range walker.Entries(ctx) {
		if entry.Err != nil {
			if entry.Dir == j.root {
				return nil, failure.Wrap(failure.ErrAccessDenied, "scan", "read root", entry.Err)
			}
			skipped.add(entry.Dir)
			continue
		}
		index.add(entry.Name, entry.Dir)
		processed++
		if processed%j.progressEvery == 0 {
			progress.Report(percentOf(processed, total), PhaseScanning, fmt.Sprintf("%d of %d files", processed, total))
		}
	}
	if walker.Partial() || ctx.Err() != nil {
		return nil, fmt.Errorf("scan cancelled while walking: %w", context.Canceled)
	}

	progress.Report(100, PhaseSorting, "sorting duplicates")
	result := &Result{
		Root:       j.root,
		Duplicates: index.duplicates(),
		TotalFiles: processed,
		Skipped:    skipped.list(),
	}
	if len(result.Skipped) > 0 {
		logging.WarnWithContext(logger, "scan skipped unreadable directories", "scan_access_denied",
			logging.Int("skipped", len(result.Skipped)),
			logging.String(logging.FieldErrorHint, "check directory permissions and rerun"),
			logging.String(logging.FieldImpact, "duplicates inside skipped directories are not reported"),
		)
	}
	logger.Info("scan complete",
		logging.Int("total_files", result.TotalFiles),
		logging.Int("duplicates", len(result.Duplicates)),
	)
	return result, nil
}

func percentOf(done, total int) float64 {
	if total <= 0 || done >= total {
		return 100
	}
	return float64(done) / float64(total) * 100
}

// nameIndex maps NFC-normalized filenames to the directories holding them,
// in first-seen order.
type nameIndex struct {
	byKey map[string]*indexEntry
	order []*indexEntry
}

type indexEntry struct {
	display string
	dirs    []string
	seen    map[string]struct{}
}

func newNameIndex() *nameIndex {
	return &nameIndex{byKey: make(map[string]*indexEntry)}
}

func (x *nameIndex) add(name, dir string) {
	key := norm.NFC.String(name)
	entry, ok := x.byKey[key]
	if !ok {
		entry = &indexEntry{display: name, seen: make(map[string]struct{})}
		x.byKey[key] = entry
		x.order = append(x.order, entry)
	}
	if _, dup := entry.seen[dir]; dup {
		return
	}
	entry.seen[dir] = struct{}{}
	entry.dirs = append(entry.dirs, dir)
}

func (x *nameIndex) duplicates() []Duplicate {
	out := make([]Duplicate, 0)
	for _, entry := range x.order {
		if len(entry.dirs) > 1 {
			out = append(out, Duplicate{Name: entry.display, Dirs: append([]string(nil), entry.dirs...)})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return len(out[a].Dirs) > len(out[b].Dirs)
	})
	return out
}

type pathSet struct {
	seen  map[string]struct{}
	order []string
}

func newPathSet() *pathSet {
	return &pathSet{seen: make(map[string]struct{})}
}

func (s *pathSet) add(path string) {
	if _, ok := s.seen[path]; ok {
		return
	}
	s.seen[path] = struct{}{}
	s.order = append(s.order, path)
}

func (s *pathSet) list() []string {
	return append([]string(nil), s.order...)
}

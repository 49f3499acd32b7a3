// Package preflight provides readiness checks for the filesystem paths and
// external tools reel depends on.
//
// These checks run in two contexts:
//   - Merge preparation calls CheckOutputParent and RequireTools so a merge
//     fails fast, before any job starts or any file is written.
//   - The CLI "reel deps" command uses RunAll to display overall health.
package preflight

// Package fileutil holds small filesystem helpers shared by the merge job and
// the CLI, including advisory locks that keep two reel processes from writing
// the same output.
package fileutil

// Package logs reads the JSON log file written by reel for `reel logs`.
//
// Last returns the trailing lines of a file with bounded memory; ReadFrom and
// Follow continue from a byte offset, never splitting a line a writer has
// not finished and restarting when the file is truncated. Filter narrows
// records to one job or a minimum level.
package logs

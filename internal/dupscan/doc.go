// Package dupscan finds filenames that appear in more than one directory of
// a tree.
//
// The job makes two passes with fswalk: a count that sizes the progress
// denominator, then a walk that builds the name index. Names are compared in
// Unicode NFC so decomposed spellings group with composed ones. An unreadable
// root fails the job; unreadable subtrees are skipped in both passes and
// listed in Result.Skipped.
package dupscan

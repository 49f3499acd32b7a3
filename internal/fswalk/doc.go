// Package fswalk exposes a lazy, cancellation-aware directory traversal.
//
// Walker.Entries returns an iter.Seq so callers can range over files without
// materializing the tree. Unreadable subtrees are reported inline as entries
// carrying an error and then skipped; cancellation ends the sequence quietly
// and is observable through Partial.
package fswalk

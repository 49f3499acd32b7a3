// Package procsup supervises external processes.
//
// A Supervisor launches a command, streams its stderr line by line into a
// bounded tail, and owns termination: Terminate sends a graceful signal,
// waits a bounded grace period, then kills. Launching goes through the
// Launcher interface so tests can substitute processes that ignore signals.
package procsup

// Package job provides Controller, a cancellable background job runner.
//
// A Controller owns exactly one worker goroutine per run. The body reports
// progress through a Reporter; callers read it with Poll or Subscribe and
// never block on the body itself. Cancellation is cooperative through the
// body's context, and the terminal state is published only after the body
// returns, so observers never see Cancelled while the body is still cleaning
// up.
package job

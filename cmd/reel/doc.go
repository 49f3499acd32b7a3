// Package main hosts the reel CLI entrypoint and command graph.
//
// scan and merge run jobs in-process through a workflow.Manager, drawing a
// progress bar from controller polls and turning Ctrl-C into a cancellation
// request. probe and deps inspect media files and the ffmpeg toolchain.
// serve exposes the same manager over HTTP, and jobs is its client.
//
// Commands resolve configuration once through commandContext; subcommands
// annotated with skipConfigLoad handle configuration themselves.
package main

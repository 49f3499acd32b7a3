// Package workflow is the operation surface shared by reel's front-ends.
//
// The Manager validates submissions, gives each scan or merge its own
// job.Controller keyed by job ID, and routes cancel and status requests to
// it. Validation failures (bad root, too few inputs, missing tools) are
// returned directly and never create a job. Shutdown cancels every active
// job and waits until each has removed its partial artifacts.
package workflow

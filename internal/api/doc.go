// Package api serves reel's job surface over HTTP.
//
// Routes (chi):
//
//	GET    /api/health             tool availability
//	POST   /api/scan               {"root": "..."}
//	POST   /api/merge              {"inputs": [...], "output": "...", "allow_incompatible": false, "sort": false}
//	GET    /api/jobs               every known job
//	GET    /api/jobs/{id}          one job's latest snapshot
//	POST   /api/jobs/{id}/cancel   request cancellation
//	DELETE /api/jobs/{id}          forget a finished job
//	GET    /metrics                Prometheus exposition
//
// Submissions return 202 with the new job. Validation failures map to 400,
// missing tools to 503, unknown jobs to 404, and conflicts (a locked output,
// or an active job being forgotten) to 409. Timestamps use RFC3339 with
// milliseconds.
package api

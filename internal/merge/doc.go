// Package merge joins video files end to end with ffmpeg's concat demuxer
// in stream-copy mode.
//
// Prepare validates a Request up front (input count, readable regular
// inputs, a writable output location, installed tools) so that nothing is
// written for a request that cannot succeed. The returned Job is a job.Body:
// it probes durations, compares each input's first video stream against the
// first file's, writes a transient concat list, and supervises ffmpeg while
// estimating progress from the growing output size.
//
// Inputs whose codec, resolution, or pixel format differ from the first file
// stop the job with an IncompatibleError unless the request allows them. A
// cancelled or failed merge never leaves a partial output behind, and a
// completed merge whose output is much smaller than its inputs is flagged
// with SizeAnomaly.
package merge

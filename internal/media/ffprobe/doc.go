// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Attributes: the codec, dimensions, and pixel format of a video stream
//   - Duration: a tagged duration that is either Known(seconds) or Unknown
//
// Entry points:
//   - Inspect: full format and stream inspection
//   - VideoAttributes: first video stream only
//   - ProbeDuration: container duration, never failing (Unknown instead)
package ffprobe

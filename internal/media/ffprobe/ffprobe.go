package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	PixFmt    string `json:"pix_fmt"`
	Duration  string `json:"duration"`
	BitRate   string `json:"bit_rate"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	output, err := run(ctx, binary, path, "-show_format", "-show_streams")
	if err != nil {
		return Result{}, err
	}
	return parseResult(output)
}

// VideoAttributes probes only the first video stream of path.
func VideoAttributes(ctx context.Context, binary string, path string) (Attributes, error) {
	output, err := run(ctx, binary, path, "-select_streams", "v:0", "-show_entries", "stream=codec_name,width,height,pix_fmt")
	if err != nil {
		return Attributes{}, err
	}
	return parseAttributes(output)
}

// ProbeDuration returns the container duration of path, or Unknown when the
// probe fails or reports nothing usable.
func ProbeDuration(ctx context.Context, binary string, path string) Duration {
	output, err := run(ctx, binary, path, "-show_entries", "format=duration")
	if err != nil {
		return Unknown
	}
	result, err := parseResult(output)
	if err != nil {
		return Unknown
	}
	return result.Duration()
}

func run(ctx context.Context, binary, path string, selection ...string) ([]byte, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ffprobe inspect: empty path")
	}

	args := append([]string{"-v", "error", "-hide_banner"}, selection...)
	args = append(args, "-of", "json", "--", path)
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return output, nil
}

func parseResult(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

func parseAttributes(data []byte) (Attributes, error) {
	result, err := parseResult(data)
	if err != nil {
		return Attributes{}, err
	}
	stream, ok := result.FirstVideoStream()
	if !ok {
		return Attributes{}, errors.New("ffprobe parse: no video stream")
	}
	attrs := Attributes{Codec: stream.CodecName, Width: stream.Width, Height: stream.Height, PixFmt: stream.PixFmt}
	if attrs.Codec == "" {
		return Attributes{}, errors.New("ffprobe parse: video stream without codec")
	}
	return attrs, nil
}

// FirstVideoStream returns the first stream that looks like video. Streams
// selected with -select_streams omit codec_type, so an untyped stream with
// dimensions counts.
func (r Result) FirstVideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
		if stream.CodecType == "" && (stream.Width > 0 || stream.Height > 0) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, 0 when absent,
// or NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// Duration returns the container duration as a tagged value.
func (r Result) Duration() Duration {
	if strings.TrimSpace(r.Format.Duration) == "" {
		return Unknown
	}
	return Known(r.DurationSeconds())
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

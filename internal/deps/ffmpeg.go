package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirements lists the media tools a merge needs.
func Requirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for stream-copy concatenation",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for duration and stream inspection",
		},
	}
}

// DetectVersions fills in Version for available ffmpeg-family tools.
// A failed version query leaves the status available with a detail note.
func DetectVersions(ctx context.Context, statuses []Status) []Status {
	out := make([]Status, len(statuses))
	for i, status := range statuses {
		if status.Available {
			version, err := ToolVersion(ctx, status.Command)
			if err != nil {
				status.Detail = fmt.Sprintf("version query failed: %v", err)
			} else {
				status.Version = version
			}
		}
		out[i] = status
	}
	return out
}

// ToolVersion runs "<binary> -version" and returns the reported version.
func ToolVersion(ctx context.Context, binary string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-version") //nolint:gosec
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	return ParseVersion(stdout.Bytes())
}

// ParseVersion extracts the version token from the banner line, e.g.
// "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) ..." yields "6.1.1-3ubuntu5".
func ParseVersion(output []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "version" {
				return fields[i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no version line in output")
}

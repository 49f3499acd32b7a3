package merge

import (
	"fmt"
	"strings"

	"reel/internal/failure"
	"reel/internal/media/ffprobe"
)

// Phase labels reported while a merge runs.
const (
	PhaseProbing    = "probing"
	PhaseChecking   = "checking"
	PhasePreparing  = "preparing"
	PhaseMerging    = "merging"
	PhaseFinalizing = "finalizing"
)

// Request describes a merge as submitted by a caller.
type Request struct {
	Inputs            []string `json:"inputs"`
	Output            string   `json:"output"`
	AllowIncompatible bool     `json:"allow_incompatible"`
	// Sort orders inputs by natural base-name order before merging.
	Sort bool `json:"sort"`
}

// MediaFile is one merge input.
type MediaFile struct {
	Path       string              `json:"path"`
	Size       int64               `json:"size"`
	Duration   ffprobe.Duration    `json:"duration"`
	Attributes *ffprobe.Attributes `json:"attributes,omitempty"`
}

// Name returns the file's base name.
func (f MediaFile) Name() string {
	return baseName(f.Path)
}

// Manifest is the ordered list of inputs and the output they merge into.
type Manifest struct {
	Files     []MediaFile `json:"files"`
	Output    string      `json:"output"`
	TotalSize int64       `json:"total_size"`
}

// VerdictStatus summarizes a compatibility check.
type VerdictStatus string

const (
	VerdictPass       VerdictStatus = "pass"
	VerdictMismatch   VerdictStatus = "mismatch"
	VerdictNoBaseline VerdictStatus = "no_baseline"
)

// Mismatch is an input whose stream attributes differ from the first file's.
// Index is 1-based.
type Mismatch struct {
	Index      int                `json:"index"`
	Name       string             `json:"name"`
	Fields     []string           `json:"fields"`
	Attributes ffprobe.Attributes `json:"attributes"`
}

// Verdict is the result of comparing every input against the first.
type Verdict struct {
	Status     VerdictStatus      `json:"status"`
	Baseline   ffprobe.Attributes `json:"baseline"`
	Mismatches []Mismatch         `json:"mismatches,omitempty"`
}

// Compatible reports whether stream copy is expected to succeed.
func (v Verdict) Compatible() bool {
	return v.Status == VerdictPass
}

// Describe renders the mismatch list for humans.
func (v Verdict) Describe() string {
	switch v.Status {
	case VerdictPass:
		return "all inputs match " + v.Baseline.String()
	case VerdictNoBaseline:
		return "first input's stream attributes could not be read"
	}
	parts := make([]string, 0, len(v.Mismatches))
	for _, m := range v.Mismatches {
		parts = append(parts, fmt.Sprintf("#%d %s (%s: %s)", m.Index, m.Name, strings.Join(m.Fields, ","), m.Attributes))
	}
	return fmt.Sprintf("differs from %s: %s", v.Baseline, strings.Join(parts, "; "))
}

// IncompatibleError carries the verdict of a merge refused because inputs
// differ. Resubmitting with AllowIncompatible proceeds anyway.
type IncompatibleError struct {
	Verdict Verdict
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("%v: %d input(s) %s", failure.ErrIncompatibleInputs, len(e.Verdict.Mismatches), e.Verdict.Describe())
}

func (e *IncompatibleError) Unwrap() error {
	return failure.ErrIncompatibleInputs
}

// Report is the result of a completed merge.
type Report struct {
	Output         string           `json:"output"`
	OutputSize     int64            `json:"output_size"`
	TotalInputSize int64            `json:"total_input_size"`
	Ratio          float64          `json:"ratio"`
	SizeAnomaly    bool             `json:"size_anomaly"`
	Verdict        Verdict          `json:"verdict"`
	Inputs         []MediaFile      `json:"inputs"`
	TotalDuration  ffprobe.Duration `json:"total_duration"`
}

// TotalDuration sums input durations; Unknown if any input's is.
func TotalDuration(files []MediaFile) ffprobe.Duration {
	if len(files) == 0 {
		return ffprobe.Unknown
	}
	total := ffprobe.Known(0)
	for _, f := range files {
		total = total.Add(f.Duration)
	}
	return total
}

// SizeAnomaly reports whether output is suspiciously small relative to the
// combined inputs, a common sign of a stream copy that dropped data.
func SizeAnomaly(outputSize, totalInput int64, ratio float64) bool {
	if totalInput <= 0 {
		return false
	}
	return float64(outputSize) < ratio*float64(totalInput)
}

package ffprobe

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if seconds, ok := result.Duration().Seconds(); !ok || seconds != 123.45 {
		t.Fatalf("unexpected tagged duration: %v %v", seconds, ok)
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	stream, ok := result.FirstVideoStream()
	if !ok || stream.CodecName != "h264" {
		t.Fatalf("unexpected video stream %+v", stream)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "N/A",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.Duration().IsKnown() {
		t.Fatal("expected unparsable duration to be unknown")
	}
	if (Result{}).Duration().IsKnown() {
		t.Fatal("expected missing duration to be unknown")
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Attributes
		wantErr bool
	}{
		{
			name:    "selected stream without codec_type",
			payload: `{"programs":[],"streams":[{"codec_name":"hevc","width":3840,"height":2160,"pix_fmt":"yuv420p10le"}]}`,
			want:    Attributes{Codec: "hevc", Width: 3840, Height: 2160, PixFmt: "yuv420p10le"},
		},
		{name: "no streams", payload: `{"streams":[]}`, wantErr: true},
		{name: "garbage", payload: `not json`, wantErr: true},
		{name: "missing codec", payload: `{"streams":[{"width":10,"height":10}]}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAttributes([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAttributes returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAttributesDiff(t *testing.T) {
	base := Attributes{Codec: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p"}
	if diff := base.Diff(base); len(diff) != 0 {
		t.Fatalf("expected no diff, got %v", diff)
	}
	other := base
	other.Width = 1280
	other.PixFmt = "yuv444p"
	if diff := base.Diff(other); !slices.Equal(diff, []string{"width", "pix_fmt"}) {
		t.Fatalf("unexpected diff %v", diff)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name  string
		d     Duration
		str   string
		known bool
	}{
		{"unknown", Unknown, "unknown", false},
		{"zero", Known(0), "00:00:00", true},
		{"rounded", Known(3725.6), "01:02:06", true},
		{"negative", Known(-1), "unknown", false},
		{"nan", Known(math.NaN()), "unknown", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.d.String() != tc.str || tc.d.IsKnown() != tc.known {
				t.Fatalf("got %q/%v, want %q/%v", tc.d.String(), tc.d.IsKnown(), tc.str, tc.known)
			}
		})
	}

	if sum := Known(10).Add(Known(5)); sum.String() != "00:00:15" {
		t.Fatalf("unexpected sum %s", sum)
	}
	if Known(10).Add(Unknown).IsKnown() {
		t.Fatal("sum with unknown must be unknown")
	}

	data, err := json.Marshal(struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}{Known(1.5), Unknown})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":1.5,"b":null}` {
		t.Fatalf("unexpected json %s", data)
	}
	var decoded Duration
	if err := json.Unmarshal([]byte("2.5"), &decoded); err != nil || decoded.String() != "00:00:03" {
		t.Fatalf("unexpected decode %v %v", decoded, err)
	}
}

func TestProbeDurationMissingBinaryIsUnknown(t *testing.T) {
	d := ProbeDuration(context.Background(), "/nonexistent/reel/ffprobe", "clip.mp4")
	if d.IsKnown() {
		t.Fatalf("expected unknown duration, got %s", d)
	}
	if _, err := VideoAttributes(context.Background(), "/nonexistent/reel/ffprobe", "clip.mp4"); err == nil {
		t.Fatal("expected error from missing binary")
	}
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestTeeHandlerCollapsesTrivialCases(t *testing.T) {
	if _, ok := TeeHandler().(NoopHandler); !ok {
		t.Fatal("expected noop handler when nothing is supplied")
	}
	var buf bytes.Buffer
	single := slog.NewJSONHandler(&buf, nil)
	if got := TeeHandler(nil, single); got != single {
		t.Fatal("expected single handler to be returned directly")
	}
}

func TestFanoutHandlerEnabled(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := TeeHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info enabled through second handler")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug disabled for both handlers")
	}
}

func TestFanoutHandlerHandleRespectsLevel(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := TeeHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h)

	logger.Info("info message")
	if buf1.Len() == 0 {
		t.Error("expected output in buf1 (info level)")
	}
	if buf2.Len() != 0 {
		t.Error("expected no output in buf2 (warn level filter)")
	}

	logger.Warn("warn message")
	if buf2.Len() == 0 {
		t.Error("expected warn output in buf2")
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := TeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String(FieldJobID, "abc")}).WithGroup("merge"))
	logger.Info("test", slog.String("output", "/tmp/out.mp4"))

	for name, buf := range map[string]*bytes.Buffer{"buf1": &buf1, "buf2": &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"job_id":"abc"`)) {
			t.Errorf("expected job_id in %s: %s", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"merge":{"output"`)) {
			t.Errorf("expected grouped field in %s: %s", name, buf.String())
		}
	}
}

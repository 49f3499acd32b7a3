package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reel/internal/config"
	"reel/internal/testsupport"
)

const probeJSON = `{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360,"pix_fmt":"yuv420p"},{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"12.5"}}`

const wideProbeJSON = `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":360,"pix_fmt":"yuv420p"}],"format":{"duration":"30"}}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// setupToolEnv stubs ffprobe so files whose path contains "wide" report a
// different width, and ffmpeg so it writes ffmpegBytes to its last argument.
func setupToolEnv(t *testing.T, ffmpegBytes int) *cliTestEnv {
	t.Helper()
	skipWithoutShell(t)
	ffprobe := "case \"$*\" in\n*wide*) echo '" + wideProbeJSON + "' ;;\n*) echo '" + probeJSON + "' ;;\nesac"
	ffmpeg := "case \"$1\" in\n-hide_banner)\n  [ \"$2\" = \"-version\" ] && { echo 'ffmpeg version 6.1.1 Copyright (c) 2000-2023'; exit 0; }\n  ;;\nesac\n" +
		"eval \"out=\\${$#}\"\nhead -c " + strconv.Itoa(ffmpegBytes) + " /dev/zero > \"$out\""
	return setupCLITestEnv(t,
		testsupport.WithStubScript("ffprobe", ffprobe),
		testsupport.WithStubScript("ffmpeg", ffmpeg),
	)
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
}

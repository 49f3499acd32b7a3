package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeScan()
	c.normalizeMerge()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	// An empty temp dir means os.TempDir at the time of use.
	if strings.TrimSpace(c.Paths.TempDir) != "" {
		if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
			return fmt.Errorf("paths.temp_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("REEL_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = value
	}
	if value, ok := os.LookupEnv("REEL_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = value
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
}

func (c *Config) normalizeScan() {
	if c.Scan.ProgressEvery == 0 {
		c.Scan.ProgressEvery = defaultScanProgressEvery
	}
	if c.Scan.PollIntervalMS == 0 {
		c.Scan.PollIntervalMS = defaultScanPollIntervalMS
	}
}

func (c *Config) normalizeMerge() {
	if c.Merge.PollIntervalMS == 0 {
		c.Merge.PollIntervalMS = defaultMergePollIntervalMS
	}
	if c.Merge.KillGraceSeconds == 0 {
		c.Merge.KillGraceSeconds = defaultKillGraceSeconds
	}
	if c.Merge.WaitTimeoutSeconds == 0 {
		c.Merge.WaitTimeoutSeconds = defaultWaitTimeoutSeconds
	}
	if c.Merge.ProbeTimeoutSeconds == 0 {
		c.Merge.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Merge.SizeAnomalyRatio == 0 {
		c.Merge.SizeAnomalyRatio = defaultSizeAnomalyRatio
	}
	if c.Merge.DiagnosticTailLines == 0 {
		c.Merge.DiagnosticTailLines = defaultDiagnosticTailLines
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

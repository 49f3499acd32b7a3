package config

const (
	defaultConfigPath          = "~/.config/reel/config.toml"
	defaultLogDir              = "~/.local/share/reel/logs"
	defaultLockDir             = "~/.local/share/reel/locks"
	defaultFFmpeg              = "ffmpeg"
	defaultFFprobe             = "ffprobe"
	defaultScanProgressEvery   = 100
	defaultScanPollIntervalMS  = 100
	defaultMergePollIntervalMS = 500
	defaultKillGraceSeconds    = 3
	defaultWaitTimeoutSeconds  = 5
	defaultProbeTimeoutSeconds = 30
	defaultSizeAnomalyRatio    = 0.8
	defaultDiagnosticTailLines = 10
	defaultAPIBind             = "127.0.0.1:7488"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			LockDir: defaultLockDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Scan: Scan{
			ProgressEvery:  defaultScanProgressEvery,
			PollIntervalMS: defaultScanPollIntervalMS,
		},
		Merge: Merge{
			PollIntervalMS:      defaultMergePollIntervalMS,
			KillGraceSeconds:    defaultKillGraceSeconds,
			WaitTimeoutSeconds:  defaultWaitTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			SizeAnomalyRatio:    defaultSizeAnomalyRatio,
			DiagnosticTailLines: defaultDiagnosticTailLines,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	return ensurePositiveMap(map[string]int{
		"scan.progress_every":   c.Scan.ProgressEvery,
		"scan.poll_interval_ms": c.Scan.PollIntervalMS,
	})
}

func (c *Config) validateMerge() error {
	if err := ensurePositiveMap(map[string]int{
		"merge.poll_interval_ms":      c.Merge.PollIntervalMS,
		"merge.kill_grace_seconds":    c.Merge.KillGraceSeconds,
		"merge.wait_timeout_seconds":  c.Merge.WaitTimeoutSeconds,
		"merge.probe_timeout_seconds": c.Merge.ProbeTimeoutSeconds,
		"merge.diagnostic_tail_lines": c.Merge.DiagnosticTailLines,
	}); err != nil {
		return err
	}
	if c.Merge.SizeAnomalyRatio <= 0 || c.Merge.SizeAnomalyRatio > 1 {
		return errors.New("merge.size_anomaly_ratio must be greater than 0 and at most 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package logs

import (
	"encoding/json"
	"log/slog"
	"strings"

	"reel/internal/logging"
)

// Filter selects JSON log records. The zero Filter matches every line.
type Filter struct {
	JobID    string
	MinLevel slog.Level
	// LevelSet distinguishes an explicit debug threshold from the zero value.
	LevelSet bool
}

// Active reports whether the filter can reject anything.
func (f Filter) Active() bool {
	return f.JobID != "" || f.LevelSet
}

// Match reports whether line passes the filter. Lines that are not JSON
// records only pass an inactive filter.
func (f Filter) Match(line string) bool {
	if !f.Active() {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.JobID != "" {
		id, _ := record[logging.FieldJobID].(string)
		if id != f.JobID {
			return false
		}
	}
	if f.LevelSet {
		level, _ := record["level"].(string)
		if ParseLevel(level) < f.MinLevel {
			return false
		}
	}
	return true
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

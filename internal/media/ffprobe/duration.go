package ffprobe

import (
	"encoding/json"
	"fmt"
	"math"
)

// Duration is a media duration that may be unknown. The zero value is Unknown.
type Duration struct {
	seconds float64
	known   bool
}

// Unknown is the duration of a file ffprobe could not measure.
var Unknown = Duration{}

// Known returns a duration of s seconds. Negative or non-finite values are Unknown.
func Known(s float64) Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return Unknown
	}
	return Duration{seconds: s, known: true}
}

// Seconds returns the duration and whether it is known.
func (d Duration) Seconds() (float64, bool) {
	return d.seconds, d.known
}

// IsKnown reports whether the duration was measured.
func (d Duration) IsKnown() bool {
	return d.known
}

// Add sums two durations; the result is Unknown if either is.
func (d Duration) Add(other Duration) Duration {
	if !d.known || !other.known {
		return Unknown
	}
	return Known(d.seconds + other.seconds)
}

// String renders HH:MM:SS, or "unknown".
func (d Duration) String() string {
	if !d.known {
		return "unknown"
	}
	total := int64(math.Round(d.seconds))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// MarshalJSON encodes seconds, or null when unknown.
func (d Duration) MarshalJSON() ([]byte, error) {
	if !d.known {
		return []byte("null"), nil
	}
	return json.Marshal(d.seconds)
}

// UnmarshalJSON accepts seconds or null.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Unknown
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	*d = Known(seconds)
	return nil
}

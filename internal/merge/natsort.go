package merge

import (
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// SortNatural orders paths by base name so that "clip2" precedes "clip10".
// Comparison is case-insensitive; ties fall back to the full path.
func SortNatural(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		if c := naturalCompare(folder.String(filepath.Base(a)), folder.String(filepath.Base(b))); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, restA := splitDigits(a)
			nb, restB := splitDigits(b)
			if c := compareNumeric(na, nb); c != 0 {
				return c
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}
	return len(a) - len(b)
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// compareNumeric compares digit runs by value, then by length so "01" sorts
// after "1".
func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		return len(ta) - len(tb)
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return len(a) - len(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

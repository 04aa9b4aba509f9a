package store

import (
	"fmt"
	"strings"

	"expensetrack/internal/core"
)

// addName appends name to an ordered set compared case-insensitively.
func addName(names []string, name string, limit int) ([]string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return names, "", core.ErrEmptyName
	}
	if indexName(names, name) >= 0 {
		return names, "", fmt.Errorf("%w: %q", core.ErrDuplicate, name)
	}
	if len(names) >= limit {
		return names, "", fmt.Errorf("%w: at most %d entries", core.ErrLimitExceeded, limit)
	}
	return append(names, name), name, nil
}

// removeName drops name (case-insensitive) and reports whether it was present.
func removeName(names []string, name string) ([]string, bool) {
	i := indexName(names, strings.TrimSpace(name))
	if i < 0 {
		return names, false
	}
	out := make([]string, 0, len(names)-1)
	out = append(out, names[:i]...)
	return append(out, names[i+1:]...), true
}

func indexName(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// NormalizeNames trims, drops blanks and removes case-insensitive duplicates
// while preserving input order.
func NormalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || indexName(out, v) >= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

package quality

import (
	"strings"
)

// NormalizeColumn standardizes a source column name: lowercase, trimmed,
// with spaces, dashes, dots and slashes replaced by underscores.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_")
	return replacer.Replace(name)
}

// NormalizeColumns applies NormalizeColumn to every name, keeping order.
func NormalizeColumns(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = NormalizeColumn(name)
	}
	return out
}

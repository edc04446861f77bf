package export

import (
	"path/filepath"
	"strings"
)

// ComparisonName is the default result file name for a pipeline input:
// the input's base name, sanitised, plus "_comparison.json". URL query
// strings and fragments are dropped.
func ComparisonName(input string) string {
	base := input
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	safe := strings.Map(func(r rune) rune {
		switch {
		case r == '_' || r == '-':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, base)
	return safe + "_comparison.json"
}

// PairName is the default result file name when comparing two JSON files.
func PairName(file1, file2 string) string {
	return stem(file1) + "_" + stem(file2) + "_comparison.json"
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

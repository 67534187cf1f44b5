package loader

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// pathSelector identifies one potential load inside a watched directory.
type pathSelector struct {
	path     string
	selector string
}

func canonicalPath(p string) string {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// listFiles returns the regular files below dir. Listing errors are logged
// and the affected entries skipped; a rescan will retry them anyway.
func listFiles(dir string, recursive bool, log *slog.Logger) []string {
	var files []string

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn(Namespace+": cannot list directory entry", "path", path, "error", err)
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			log.Warn(Namespace+": directory walk failed", "dir", dir, "error", err)
		}
		return files
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn(Namespace+": cannot list directory", "dir", dir, "error", err)
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

// sortNatural orders paths so that numbered sequences come out in numeric
// order ("file2" before "file10").
func sortNatural(paths []string) {
	sort.Slice(paths, func(i, j int) bool { return naturalLess(paths[i], paths[j]) })
}

// naturalLess compares strings with embedded digit runs by numeric value;
// non-digit sections compare bytewise.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			da, ra := splitDigits(a)
			db, rb := splitDigits(b)
			if c := compareDigits(da, db); c != 0 {
				return c < 0
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// compareDigits compares two digit runs by numeric value without parsing,
// so arbitrarily long runs cannot overflow.
func compareDigits(a, b string) int {
	at := trimLeadingZeros(a)
	bt := trimLeadingZeros(b)
	if len(at) != len(bt) {
		if len(at) < len(bt) {
			return -1
		}
		return 1
	}
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	default:
		return 0
	}
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}

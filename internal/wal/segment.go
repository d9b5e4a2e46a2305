package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// segmentPath returns the path of the segment with the given counter:
// <walPath>.<counter>.
func segmentPath(walPath string, counter int) string {
	return walPath + "." + strconv.Itoa(counter)
}

// archivedPath returns the path Rotate renames a live segment to:
// <segmentPath>.<epoch>.old.
func archivedPath(path string, epoch int64) string {
	return fmt.Sprintf("%s.%d%s", path, epoch, oldSegmentSuffix)
}

// listSegments scans dir for siblings of walPath matching "<base>.<N>"
// (N a positive integer, no further suffix) and returns their counters in
// ascending order.
func listSegments(walPath string) ([]int, error) {
	dir := filepath.Dir(walPath)
	base := filepath.Base(walPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read dir %s: %w", dir, err)
	}

	prefix := base + "."
	var counters []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := name[len(prefix):]
		if suffix == "" || strings.Contains(suffix, ".") {
			// Archived segments carry an extra ".<epoch>.old" suffix; a
			// live segment's counter is a bare integer.
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n <= 0 {
			continue
		}
		counters = append(counters, n)
	}

	sort.Ints(counters)
	return counters, nil
}

// openSegmentAppend opens (creating if absent) a segment file for append.
func openSegmentAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileOpen, path, err)
	}
	return f, nil
}

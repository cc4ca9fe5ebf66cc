package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Key suffixes.
const (
	JSONSuffix = ".json"
	ZstdSuffix = ".zst"
)

// PartitionKey places name under the Hive-style date partition of t (UTC).
func PartitionKey(prefix string, t time.Time, name string) string {
	t = t.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		fmt.Sprintf("year=%04d", t.Year()),
		fmt.Sprintf("month=%02d", int(t.Month())),
		fmt.Sprintf("day=%02d", t.Day()),
		name,
	)
}

// ObjectName returns the file name for an extraction at t.
func ObjectName(filePrefix string, t time.Time, compression string) string {
	name := filePrefix + "_" + t.UTC().Format("20060102_150405") + JSONSuffix
	if compression == "zstd" {
		name += ZstdSuffix
	}
	return name
}

// IsDataKey reports whether key names a landed feed document.
func IsDataKey(key string) bool {
	return strings.HasSuffix(key, JSONSuffix) || strings.HasSuffix(key, JSONSuffix+ZstdSuffix)
}

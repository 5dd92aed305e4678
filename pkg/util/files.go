package util

import (
	"os"
	"strings"

	"github.com/minawa/panelreel/internal/timeline"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RefForPath builds an asset reference for user input that may be either
// a network URL or a local file path.
func RefForPath(s string) timeline.AssetRef {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return timeline.URLRef(s)
	}
	return timeline.StoredRef(s)
}

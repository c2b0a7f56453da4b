package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FallbackFilename is used when sanitization leaves nothing usable.
const FallbackFilename = "processed_file"

var forbiddenRuns = regexp.MustCompile(`[\\/*?:"<>|\s]+`)

// SanitizeFilename strips the directory and extension from filename and maps
// every run of forbidden characters or whitespace to a single underscore.
// Sanitizing an already-sanitized name returns it unchanged, unless the name
// still contains a dot: the last dotted segment reads as an extension and is
// stripped again.
func SanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	sanitized := forbiddenRuns.ReplaceAllString(name, "_")
	if sanitized == "" {
		return FallbackFilename
	}
	return sanitized
}

func GetDefaultOutputDir() string {
	tmpDir, err := os.MkdirTemp("", "ankitagger-output-*")
	if err != nil {
		// If we can't create a temp directory, fall back to local directory
		return "ankitagger-output"
	}
	return tmpDir
}

package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxFilenameLength is the maximum allowed length in bytes for the filename stem.
	MaxFilenameLength = 120
	// DefaultExt is used when no extension is provided.
	DefaultExt = "mp4"
	// DefaultName replaces an empty title.
	DefaultName = "video"
)

var (
	unsafeChars  = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)
	repeatSpaces = regexp.MustCompile(`\s{2,}`)
)

// ToSafeFilename builds a cross-platform safe filename from a video title and
// an extension (with or without the leading dot).
func ToSafeFilename(title, ext string) string {
	name := strings.TrimSpace(title)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = repeatSpaces.ReplaceAllString(name, " ")
	name = truncate(name, MaxFilenameLength)
	// Windows refuses names ending in a dot or space.
	name = strings.TrimRight(name, ". ")
	if name == "" {
		name = DefaultName
	}
	return name + "." + normalizeExt(ext)
}

// SwapExt returns path with its extension replaced by ext, in the same directory.
func SwapExt(path, ext string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + "." + normalizeExt(ext)
}

// SameExt reports whether path already carries ext, ignoring case and the dot.
func SameExt(path, ext string) bool {
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return DefaultExt
	}
	return ext
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

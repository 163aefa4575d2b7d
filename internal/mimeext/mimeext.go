// Package mimeext maps stream MIME types onto file extensions.
package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when the MIME type is unknown or empty.
	DefaultExt = "mp4"
)

var known = map[string]string{
	"video/mp4":  "mp4",
	"audio/mp4":  "m4a",
	"video/webm": "webm",
	"audio/webm": "webm",
	"video/3gpp": "3gp",
	"audio/mpeg": "mp3",
}

// ExtFromMime returns the file extension (without dot) for a MIME type such as
// `video/mp4; codecs="avc1.42001E, mp4a.40.2"`. Unknown types fall back to
// their subtype, then to mp4.
func ExtFromMime(mime string) string {
	base := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if base == "" {
		return DefaultExt
	}
	if ext, ok := known[base]; ok {
		return ext
	}
	if _, sub, ok := strings.Cut(base, "/"); ok && sub != "" {
		return sub
	}
	return DefaultExt
}

package storage

import (
	"regexp"
	"strings"
)

// MaxFilenameLen caps sanitized names, in characters.
const MaxFilenameLen = 200

// FallbackName is used when sanitizing leaves nothing.
const FallbackName = "document"

var (
	reUnsafeChars = regexp.MustCompile(`[\x00:*?"<>|/\\]`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// SafeFilename strips characters that are unsafe in file names, collapses
// whitespace runs to one space and trims. An empty result becomes FallbackName.
func SafeFilename(name string) string {
	s := cleanSegment(name)
	if s == "" {
		return FallbackName
	}
	return s
}

// cleanSegment is SafeFilename without the fallback.
func cleanSegment(name string) string {
	s := reUnsafeChars.ReplaceAllString(name, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxFilenameLen {
		s = strings.TrimSpace(string(r[:MaxFilenameLen]))
	}
	return s
}

// SafeSegment sanitizes one path segment. It returns "" for segments that
// must be dropped, including "." and "..".
func SafeSegment(seg string) string {
	s := cleanSegment(seg)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

// SafeRelPath normalizes a '/'-separated relative folder: backslashes become
// slashes, every segment is sanitized, and empty or dot segments are dropped.
func SafeRelPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if s := SafeSegment(part); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

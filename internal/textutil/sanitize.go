package textutil

import (
	"strings"
	"unicode"
)

// fileNameReplacer maps characters that are unsafe on common filesystems.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " -",
	"*", "-",
	"?", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "-",
)

// SanitizeFileName makes a title safe to use as a single path segment.
// Path separators and reserved characters are replaced, control characters
// are dropped, whitespace runs collapse to one space and leading or trailing
// dots and spaces are trimmed.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), " .")
}

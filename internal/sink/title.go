package sink

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"vidsnatch/internal/textutil"
)

// DefaultTitle replaces titles that clean down to nothing.
const DefaultTitle = "Unknown Video"

// maxNameBytes leaves room for " (nn)", format tags and partial suffixes
// under the common 255-byte filename limit.
const maxNameBytes = 180

var (
	placeholderPrefix = regexp.MustCompile(`(?i)^na\s*-(\s+|$)`)
	junkPrefix        = regexp.MustCompile(`(?i)^(undefined|null|\[object object\]|untitled)\s*-(\s+|$)`)
	uploaderPattern   = regexp.MustCompile(`^([A-Za-z0-9_]+(?:\s+[A-Za-z0-9_]+)*)\s*-\s*(.{10,})$`)
	leadingDash       = regexp.MustCompile(`^-\s*`)
	trailingDash      = regexp.MustCompile(`\s*-$`)
	descriptiveWords  = map[string]struct{}{"and": {}, "the": {}, "with": {}, "for": {}, "on": {}, "in": {}}
)

// CleanTitle removes placeholder and uploader prefixes that browser pages and
// yt-dlp templates leave in front of the real video title.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = placeholderPrefix.ReplaceAllString(title, "")
	title = junkPrefix.ReplaceAllString(title, "")

	if m := uploaderPattern.FindStringSubmatch(title); m != nil {
		uploader, rest := m[1], strings.TrimSpace(m[2])
		if utf8.RuneCountInString(rest) >= 10 && len(uploader) <= 20 && !hasDescriptiveWord(uploader) {
			title = rest
		}
	}

	title = strings.TrimSpace(title)
	title = leadingDash.ReplaceAllString(title, "")
	title = strings.TrimSpace(trailingDash.ReplaceAllString(title, ""))
	if title == "" {
		return DefaultTitle
	}
	return title
}

func hasDescriptiveWord(uploader string) bool {
	for _, word := range strings.Fields(strings.ToLower(uploader)) {
		if _, ok := descriptiveWords[word]; ok {
			return true
		}
	}
	return false
}

// SafeName turns a display title into a single filesystem-safe name segment.
func SafeName(title string) string {
	name := textutil.SanitizeFileName(norm.NFC.String(title))
	name = truncateBytes(name, maxNameBytes)
	name = strings.Trim(name, " .")
	if name == "" || name == "." || name == ".." {
		return DefaultTitle
	}
	return name
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

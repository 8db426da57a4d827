package matcher

import (
	"regexp"
	"strings"
)

var (
	partialSuffixPattern = regexp.MustCompile(`(?i)(\.part-frag\d+(\.part)?|\.part|\.ytdl|\.temp|\.download|\.crdownload)+$`)
	formatTagPattern     = regexp.MustCompile(`(?i)\.f\d+$`)
	extensionPattern     = regexp.MustCompile(`\.[A-Za-z0-9]{2,5}$`)
	punctuationPattern   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
)

// Normalize reduces a title to comparable lowercase words.
func Normalize(title string) string {
	title = punctuationPattern.ReplaceAllString(strings.ToLower(title), "")
	return strings.Join(strings.Fields(title), " ")
}

// NormalizeFilename strips partial suffixes, the media extension and any
// intermediate format tag before normalizing the remaining base name.
func NormalizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = partialSuffixPattern.ReplaceAllString(name, "")
	name = extensionPattern.ReplaceAllString(name, "")
	name = formatTagPattern.ReplaceAllString(name, "")
	return Normalize(name)
}

// HasPartialSuffix reports whether filename looks like an unfinished download.
func HasPartialSuffix(filename string) bool {
	return partialSuffixPattern.MatchString(strings.TrimSpace(filename))
}

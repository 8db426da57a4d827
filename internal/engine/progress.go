package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// PathMarker prefixes the line yt-dlp prints after moving the final file into
// place (see the --print argument in Args).
const PathMarker = "vidsnatch:path="

var (
	rePct         = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed       = regexp.MustCompile(`\bat\s+([^\s]+)`)
	reETA         = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reTag         = regexp.MustCompile(`^\[([A-Za-z0-9_:]+)\]`)
	reDestination = regexp.MustCompile(`^\[(?:download|ExtractAudio|VideoConvertor|VideoRemuxer)\] Destination:\s*(.+)$`)
	reMerging     = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	reAlready     = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
)

var processingTags = map[string]struct{}{
	"Merger":         {},
	"ExtractAudio":   {},
	"FixupM3u8":      {},
	"FixupM4a":       {},
	"FixupStretched": {},
	"FixupDuration":  {},
	"FixupTimestamp": {},
	"VideoConvertor": {},
	"VideoRemuxer":   {},
	"EmbedSubtitle":  {},
	"EmbedThumbnail": {},
	"Metadata":       {},
	"ffmpeg":         {},
}

// ParseProgress interprets one output line. It reports false for lines that
// carry no progress signal (untagged output, warnings, errors).
func ParseProgress(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	m := reTag.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	tag := m[1]
	switch {
	case tag == "download":
		p := Progress{Phase: PhaseDownloading, Percent: UnknownPercent}
		if reDestination.MatchString(line) || reAlready.MatchString(line) {
			return p, true
		}
		if pm := rePct.FindStringSubmatch(line); pm != nil {
			if v, err := strconv.ParseFloat(pm[1], 64); err == nil {
				p.Percent = v
			}
		}
		if sm := reSpeed.FindStringSubmatch(line); sm != nil && !strings.HasPrefix(sm[1], "Unknown") {
			p.Speed = sm[1]
		}
		if em := reETA.FindStringSubmatch(line); em != nil {
			p.ETA = em[1]
		}
		return p, true
	case isProcessingTag(tag):
		return Progress{Phase: PhaseProcessing, Percent: UnknownPercent}, true
	default:
		return Progress{Phase: PhasePreparing, Percent: UnknownPercent}, true
	}
}

func isProcessingTag(tag string) bool {
	if _, ok := processingTags[tag]; ok {
		return true
	}
	return strings.HasPrefix(tag, "Fixup")
}

// outputTracker follows the lines of one execution to find the final file
// and the last reported error.
type outputTracker struct {
	printedPath string
	seenPath    string
	lastError   string
}

func (t *outputTracker) observe(line string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, PathMarker):
		if path := strings.TrimSpace(strings.TrimPrefix(line, PathMarker)); path != "" && path != "NA" {
			t.printedPath = path
		}
	case strings.HasPrefix(line, "ERROR:"):
		t.lastError = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
	default:
		if m := reMerging.FindStringSubmatch(line); m != nil {
			t.seenPath = m[1]
		} else if m := reDestination.FindStringSubmatch(line); m != nil {
			t.seenPath = strings.TrimSpace(m[1])
		} else if m := reAlready.FindStringSubmatch(line); m != nil {
			t.seenPath = strings.TrimSpace(m[1])
		}
	}
}

// outputPath prefers the path printed after the final move over paths
// inferred from progress lines.
func (t *outputTracker) outputPath() string {
	if t.printedPath != "" {
		return t.printedPath
	}
	return t.seenPath
}

package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"vidsnatch/internal/logging"
	"vidsnatch/internal/matcher"
)

// SweepThreshold is the score a stray partial must reach against a completed
// title before it is removed automatically.
const SweepThreshold = 0.98

// ErrNotPartial reports a DeletePartial request for a file that does not look
// like an unfinished download.
var ErrNotPartial = errors.New("not a partial download file")

// ErrInvalidName reports a filename that is not a plain base name.
var ErrInvalidName = errors.New("invalid file name")

var (
	// intermediatePattern matches the "f137.mp4" tail of a per-format stream
	// yt-dlp downloads before merging.
	intermediatePattern = regexp.MustCompile(`^f\d+\.[A-Za-z0-9]{1,5}$`)
	intermediateFile    = regexp.MustCompile(`\.f\d+\.[A-Za-z0-9]+$`)
	// partialTailPattern matches what may follow "<base>." in an unfinished
	// file of that base: a media extension, optionally behind a format tag,
	// followed by partial suffixes. Anything else belongs to another title.
	partialTailPattern = regexp.MustCompile(`^(?:f\d+\.)?[A-Za-z0-9]{1,5}(?i:\.part-frag\d+(?:\.part)?|\.part|\.ytdl|\.temp|\.download|\.crdownload)+$`)
)

// Target is a reserved output location for one execution.
type Target struct {
	Dir      string
	Base     string
	Template string
}

// TargetFor rebuilds the target of a previously reserved base name.
func TargetFor(dir, base string) Target {
	return Target{
		Dir:      dir,
		Base:     base,
		Template: filepath.Join(dir, strings.ReplaceAll(base, "%", "%%")+".%(ext)s"),
	}
}

func (t Target) key() string {
	return filepath.Join(t.Dir, t.Base)
}

// Sink allocates output names and manages files in download directories.
type Sink struct {
	mu       sync.Mutex
	reserved map[string]Target
	matcher  *matcher.Matcher
	logger   *slog.Logger
}

// New constructs a Sink. A nil matcher uses word-overlap scoring.
func New(logger *slog.Logger, m *matcher.Matcher) *Sink {
	if m == nil {
		m = matcher.New(matcher.WordOverlap{}, matcher.DefaultThreshold)
	}
	return &Sink{
		reserved: make(map[string]Target),
		matcher:  m,
		logger:   logging.NewComponentLogger(logger, "sink"),
	}
}

// Reserve picks a base name for title inside dir that neither an existing
// completed file nor another live reservation uses. A name that is a dotted
// prefix of a live reservation, or the reverse, also counts as taken.
// Collisions get " (1)", " (2)" and so on.
func (s *Sink) Reserve(dir, title string) (Target, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	info, err := os.Stat(dir)
	if err != nil {
		return Target{}, fmt.Errorf("stat download dir: %w", err)
	}
	if !info.IsDir() {
		return Target{}, fmt.Errorf("download dir %q is not a directory", dir)
	}

	taken, err := completedBases(dir)
	if err != nil {
		return Target{}, err
	}

	base := SafeName(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := base
	for counter := 1; ; counter++ {
		_, onDisk := taken[candidate]
		if !onDisk && !s.liveConflict(dir, candidate) {
			break
		}
		candidate = fmt.Sprintf("%s (%d)", base, counter)
	}
	target := TargetFor(dir, candidate)
	s.reserved[target.key()] = target
	return target, nil
}

// liveConflict reports whether candidate would share files with a live
// reservation in dir. Callers hold s.mu.
func (s *Sink) liveConflict(dir, candidate string) bool {
	for _, r := range s.reserved {
		if r.Dir != dir {
			continue
		}
		if r.Base == candidate ||
			strings.HasPrefix(r.Base, candidate+".") ||
			strings.HasPrefix(candidate, r.Base+".") {
			return true
		}
	}
	return false
}

// Release frees a reservation. Releasing an unknown target is a no-op.
func (s *Sink) Release(t Target) {
	if t.Base == "" {
		return
	}
	s.mu.Lock()
	delete(s.reserved, t.key())
	s.mu.Unlock()
}

// completedBases lists the base names of finished files in dir.
func completedBases(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read download dir: %w", err)
	}
	bases := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || matcher.HasPartialSuffix(name) || intermediateFile.MatchString(name) {
			continue
		}
		bases[strings.TrimSuffix(name, filepath.Ext(name))] = struct{}{}
	}
	return bases, nil
}

// Partials returns the unfinished files that belong to t, sorted by name.
func (s *Sink) Partials(t Target) []string {
	if t.Base == "" {
		return nil
	}
	entries, err := os.ReadDir(t.Dir)
	if err != nil {
		return nil
	}
	prefix := t.Base + "."
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if partialTailPattern.MatchString(rest) || intermediatePattern.MatchString(rest) {
			out = append(out, filepath.Join(t.Dir, name))
		}
	}
	sort.Strings(out)
	return out
}

// Remove deletes t's partial files and, when set, the completed output file.
// Every file is attempted; the returned error joins the individual failures.
func (s *Sink) Remove(t Target, outputPath string) ([]string, error) {
	paths := s.Partials(t)
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		paths = append(paths, outputPath)
	}

	var removed []string
	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logging.WarnWithContext(s.logger, "could not remove download file", "file_remove_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the download directory"),
				logging.String(logging.FieldImpact, "file stays on disk"),
			)
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 {
		s.logger.Info("removed download files",
			logging.Int("count", len(removed)),
			logging.String("base", t.Base),
			logging.String(logging.FieldEventType, "files_removed"),
		)
	}
	return removed, errors.Join(errs...)
}

// DeletePartial removes one partial file by name from dir. The name must be a
// plain base name carrying a partial suffix.
func (s *Sink) DeletePartial(dir, filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	if !matcher.HasPartialSuffix(filename) {
		return "", fmt.Errorf("%w: %q", ErrNotPartial, filename)
	}
	path := filepath.Join(dir, filename)
	if err := os.Remove(path); err != nil {
		return "", err
	}
	s.logger.Info("removed partial file",
		logging.String("path", path),
		logging.String(logging.FieldEventType, "partial_removed"),
	)
	return path, nil
}

// ListPartials returns the names of partial files directly inside dir.
func (s *Sink) ListPartials(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read download dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && matcher.HasPartialSuffix(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SweepMatchingPartials removes stray partial files in dir whose names match
// title at SweepThreshold or better. Files belonging to a live reservation are
// never touched.
func (s *Sink) SweepMatchingPartials(dir, title string) []string {
	names, err := s.ListPartials(dir)
	if err != nil || len(names) == 0 {
		return nil
	}
	var removed []string
	for _, name := range names {
		if s.ownedByReservation(dir, name) {
			continue
		}
		score, ok := s.matcher.Similar(name, title, SweepThreshold)
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.WarnWithContext(s.logger, "could not remove stray partial file", "partial_sweep_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "stray partial file stays on disk"),
				)
			}
			continue
		}
		s.logger.Info("removed stray partial file",
			logging.String("path", path),
			logging.Float64("similarity", score),
			logging.String(logging.FieldEventType, "partial_swept"),
		)
		removed = append(removed, path)
	}
	return removed
}

func (s *Sink) ownedByReservation(dir, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = filepath.Clean(dir)
	for _, r := range s.reserved {
		if r.Dir == dir && strings.HasPrefix(name, r.Base+".") {
			return true
		}
	}
	return false
}

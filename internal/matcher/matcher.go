package matcher

// DefaultThreshold is the minimum score for a lookup to count as a match.
const DefaultThreshold = 0.80

// Candidate is something a partial file could belong to.
type Candidate struct {
	ID    string
	URL   string
	Title string
}

// Match is the best scoring candidate for a filename.
type Match struct {
	Candidate
	Score float64
}

// Matcher finds the best candidate for a filename.
type Matcher struct {
	scorer    Scorer
	threshold float64
}

// New returns a Matcher. A nil scorer uses WordOverlap and a threshold outside
// (0,1] uses DefaultThreshold.
func New(scorer Scorer, threshold float64) *Matcher {
	if scorer == nil {
		scorer = WordOverlap{}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{scorer: scorer, threshold: threshold}
}

// Threshold reports the configured minimum score.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Best returns the highest scoring candidate at or above the threshold. An
// exact normalized match wins immediately; ties keep the earliest candidate.
func (m *Matcher) Best(filename string, candidates []Candidate) (Match, bool) {
	target := NormalizeFilename(filename)
	if target == "" || len(candidates) == 0 {
		return Match{}, false
	}

	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = Normalize(c.Title)
	}
	scorer := m.scorer
	if p, ok := scorer.(Preparer); ok {
		scorer = p.Prepare(append(normalized, target))
	}

	var best Match
	found := false
	for i, c := range candidates {
		if normalized[i] == "" {
			continue
		}
		if normalized[i] == target {
			return Match{Candidate: c, Score: 1}, true
		}
		score := scorer.Score(target, normalized[i])
		if score >= m.threshold && score > best.Score {
			best = Match{Candidate: c, Score: score}
			found = true
		}
	}
	return best, found
}

// Similar reports whether filename and title score at least threshold.
func (m *Matcher) Similar(filename, title string, threshold float64) (float64, bool) {
	score := m.scorer.Score(NormalizeFilename(filename), Normalize(title))
	return score, score >= threshold
}

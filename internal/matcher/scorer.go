package matcher

import (
	"strings"

	"vidsnatch/internal/textutil"
)

// Scorer rates how likely a normalized filename belongs to a normalized title,
// from 0 (unrelated) to 1 (identical).
type Scorer interface {
	Score(filename, title string) float64
}

// Preparer is implemented by scorers that learn from the full candidate set
// before scoring.
type Preparer interface {
	Prepare(titles []string) Scorer
}

// WordOverlap is the default scorer.
type WordOverlap struct{}

const (
	containmentScore = 0.99
	coverageScore    = 0.85
	coverageMinimum  = 0.8
)

// Score implements Scorer.
func (WordOverlap) Score(filename, title string) float64 {
	if filename == "" || title == "" {
		return 0
	}
	if filename == title {
		return 1
	}
	if strings.Contains(filename, title) || strings.Contains(title, filename) {
		return containmentScore
	}
	fileWords := wordSet(filename)
	titleWords := wordSet(title)
	if len(fileWords) == 0 || len(titleWords) == 0 {
		return 0
	}
	score := textutil.Jaccard(fileWords, titleWords)
	coverage := float64(textutil.Overlap(fileWords, titleWords)) / float64(len(fileWords))
	if coverage >= coverageMinimum && score < coverageScore {
		score = coverageScore
	}
	return score
}

func wordSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Cosine compares IDF-weighted token fingerprints. The zero value scores with
// raw term frequencies; Prepare derives weights from the candidate titles.
type Cosine struct {
	idf map[string]float64
}

// Prepare implements Preparer.
func (c Cosine) Prepare(titles []string) Scorer {
	corpus := textutil.NewCorpus()
	for _, title := range titles {
		corpus.Add(textutil.NewFingerprint(title))
	}
	return Cosine{idf: corpus.IDF()}
}

// Score implements Scorer.
func (c Cosine) Score(filename, title string) float64 {
	if filename == "" || title == "" {
		return 0
	}
	if filename == title {
		return 1
	}
	a := textutil.NewFingerprint(filename).WithIDF(c.idf)
	b := textutil.NewFingerprint(title).WithIDF(c.idf)
	return textutil.CosineSimilarity(a, b)
}

// ScorerByName maps a configuration value to a scorer. Unknown names fall
// back to WordOverlap.
func ScorerByName(name string) Scorer {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cosine":
		return Cosine{}
	default:
		return WordOverlap{}
	}
}

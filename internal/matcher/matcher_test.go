package matcher_test

import (
	"math"
	"testing"

	"vidsnatch/internal/matcher"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Video.mp4.part", "my video"},
		{"My Video.f137.mp4.part", "my video"},
		{"My Video.mp4.part-Frag12", "my video"},
		{"My Video.mp4.part-Frag12.part", "my video"},
		{"Clip (1).webm.ytdl", "clip 1"},
		{"Node.js Crash Course.mkv.crdownload", "nodejs crash course"},
		{"  Spaced   Out!!.temp ", "spaced out"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := matcher.NormalizeFilename(tt.in); got != tt.want {
				t.Fatalf("NormalizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeepsTitleDots(t *testing.T) {
	if got := matcher.Normalize("Node.js in 100 Seconds"); got != "nodejs in 100 seconds" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestHasPartialSuffix(t *testing.T) {
	for _, name := range []string{"a.mp4.part", "a.ytdl", "a.temp", "a.download", "a.crdownload", "a.mp4.part-Frag3"} {
		if !matcher.HasPartialSuffix(name) {
			t.Errorf("expected %q to be partial", name)
		}
	}
	for _, name := range []string{"a.mp4", "part", "a.partial.mkv"} {
		if matcher.HasPartialSuffix(name) {
			t.Errorf("expected %q not to be partial", name)
		}
	}
}

func TestWordOverlapScore(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		title    string
		want     float64
	}{
		{"exact", "rust in production", "rust in production", 1},
		{"filename inside title", "rust in production", "rust in production full talk", 0.99},
		{"title inside filename", "rust in production full talk", "rust in production", 0.99},
		{"jaccard", "alpha beta gamma delta", "alpha beta gamma omega", 3.0 / 5.0},
		{"coverage lifts", "alpha beta gamma delta zeta", "zeta alpha beta gamma delta omega", 0.85},
		{"unrelated", "cooking pasta", "kernel scheduler", 0},
		{"empty", "", "title", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matcher.WordOverlap{}.Score(tt.filename, tt.title)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestPicksHighestAboveThreshold(t *testing.T) {
	m := matcher.New(nil, 0)
	if m.Threshold() != matcher.DefaultThreshold {
		t.Fatalf("threshold = %v, want default", m.Threshold())
	}
	candidates := []matcher.Candidate{
		{ID: "1", URL: "https://example.com/a", Title: "Unrelated Cooking Show"},
		{ID: "2", URL: "https://example.com/b", Title: "Deep Dive Into Go Schedulers Full Lecture"},
		{ID: "3", URL: "https://example.com/c", Title: "Deep Dive Into Go Schedulers"},
	}

	match, ok := m.Best("Deep Dive Into Go Schedulers.mp4.part", candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.ID != "3" || match.Score != 1 {
		t.Fatalf("expected exact match on candidate 3, got %+v", match)
	}

	match, ok = m.Best("Deep Dive Into Go.f140.m4a.part", candidates)
	if !ok {
		t.Fatal("expected containment match")
	}
	if match.ID != "2" || match.Score != 0.99 {
		t.Fatalf("expected first containment match to win ties, got %+v", match)
	}
}

func TestBestRejectsBelowThreshold(t *testing.T) {
	m := matcher.New(matcher.WordOverlap{}, 0.8)
	_, ok := m.Best("Holiday Vlog Part One.mp4.part", []matcher.Candidate{
		{ID: "1", Title: "Holiday Cooking Special Episode"},
	})
	if ok {
		t.Fatal("expected no match below threshold")
	}
	if _, ok := m.Best("", []matcher.Candidate{{ID: "1", Title: "x"}}); ok {
		t.Fatal("expected empty filename not to match")
	}
}

func TestCosineScorerPrefersDistinctiveTerms(t *testing.T) {
	m := matcher.New(matcher.ScorerByName("cosine"), 0.5)
	candidates := []matcher.Candidate{
		{ID: "a", Title: "Official Music Video Sunrise Remastered"},
		{ID: "b", Title: "Official Music Video Moonlight Remastered"},
	}
	match, ok := m.Best("Sunrise Official Video Remastered.webm.part", candidates)
	if !ok {
		t.Fatal("expected a cosine match")
	}
	if match.ID != "a" {
		t.Fatalf("expected sunrise candidate, got %+v", match)
	}
}

func TestSimilarUsesSweepThreshold(t *testing.T) {
	m := matcher.New(nil, 0)
	if _, ok := m.Similar("Talk Title.mp4.part", "Talk Title", 0.98); !ok {
		t.Fatal("expected identical base to pass sweep threshold")
	}
	if score, ok := m.Similar("Talk Title Extended Cut Bonus.mp4.part", "Talk Title Remix Version Live", 0.98); ok {
		t.Fatalf("expected loose overlap to fail sweep threshold, score %v", score)
	}
}

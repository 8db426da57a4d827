// Package textutil holds the text helpers shared by title handling and
// partial-file matching: word tokenization, cosine fingerprints with optional
// IDF weighting, Jaccard overlap and filename sanitization.
package textutil

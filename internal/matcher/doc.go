// Package matcher pairs a leftover partial download file with the job or
// ledger entry it most likely came from.
//
// Filenames and titles are normalized (partial suffixes, intermediate format
// tags and extensions removed, punctuation dropped, lowercased) and scored by a
// pluggable Scorer. WordOverlap mirrors the historic rules: exact match 1.0,
// containment 0.99, otherwise Jaccard word overlap, raised to 0.85 when most of
// the filename's words appear in the title. Cosine compares IDF-weighted term
// vectors instead.
package matcher

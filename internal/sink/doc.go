// Package sink owns where downloads land on disk.
//
// It cleans display titles, derives safe unique base names, hands the engine
// an output template, and finds or removes the partial files an interrupted
// execution leaves behind.
package sink

// Package publisher serializes packets of interest onto one bound sink.
//
// Ownership boundary:
// - sink sum type (endpoint, file, tap) and its structural equality
// - publisher variants, distinguished only by type filter and encoding
// - publisher list with duplicate detection and failure-tolerant fan-out
package publisher

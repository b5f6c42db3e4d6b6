// Package packet owns the port agent packet contract.
//
// Ownership boundary:
// - packet type codes
// - immutable packet construction (length, checksum, timestamp)
// - binary wire header and stream decoding with resync
// - ascii line rendering
package packet

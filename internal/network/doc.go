// Package network owns the instrument- and observatory-facing transport
// endpoints of the port agent.
//
// Every endpoint shares one contract: host/port configuration with
// transparent reconnect on change, a non-blocking Initialize that either
// completes immediately or leaves the endpoint for a later retry, and a single
// reader goroutine per live peer that hands inbound bytes to the owner's
// Chunk channel in arrival order.
//
// Variants differ only in direction (listen vs dial) and transport (TCP vs
// serial).
package network

// Package agent is the port agent dispatcher. It owns the instrument
// Connection, the observatory listeners and the publisher list, frames
// inbound bytes into packets and fans them out, applies control commands and
// keeps retrying connectivity on a poll interval.
//
// Every Connection and Publisher mutation happens on the goroutine running
// Agent.Run. Other goroutines only read the published Status snapshot.
package agent

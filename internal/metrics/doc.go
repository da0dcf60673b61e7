// Package metrics collects router events over a buffered channel and serves
// point-in-time JSON snapshots. Emission is non-blocking: when the buffer is
// full, events are dropped rather than slowing the request path.
package metrics

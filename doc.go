// Package streamer implements a file-backed, append-only message log (.ss)
// that supports live tailing and historical replay with fast seeking by
// sequence number or timestamp.
//
// a single Writer owns the append authority over a file; any number of
// Readers scan it concurrently, each with its own cursor. periodic beacon
// records interleaved with the data frames index the per-stream state at
// their offset, so a seek walks the beacon index instead of the whole file.
// the Streamer on top multiplexes producers and round-robin consumer groups
// over one file.
package streamer

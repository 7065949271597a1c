// Package ringbuf provides a bounded FIFO ring buffer.
//
// The buffer retains the most recent N entries: once capacity is
// reached, each append evicts the single oldest entry. Appends and
// latest-reads are O(1); snapshots copy out the live window in
// oldest-to-newest order.
//
// Usage:
//
//	ring := ringbuf.New[Sample](120)
//	ring.Append(sample)
//	latest, ok := ring.Latest()
package ringbuf

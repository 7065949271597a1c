// Package wsserver fans telemetry events out to WebSocket consumers.
//
// Every consumer gets its own buffered send queue and a token-bucket
// rate limit. A consumer that cannot keep up loses frames rather than
// stalling the broadcast path; the drop count is exported as a metric.
//
// Consumers receive every channel by default and can narrow the set
// with subscribe/unsubscribe command frames carrying a channel name.
package wsserver

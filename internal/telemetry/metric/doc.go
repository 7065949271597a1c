// Package metric provides Prometheus metrics for LapStream.
//
// It exposes metrics in Prometheus format for monitoring the live
// connection (frames, reconnects, rejected sends), the telemetry
// intake feed, and the consumer fanout.
package metric

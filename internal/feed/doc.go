// Package feed ingests the simulator's encrypted UDP telemetry stream.
//
// The simulator broadcasts one fixed-size encrypted datagram per tick
// on UDP port 33740, but only while it keeps receiving a heartbeat
// byte on port 33739. The feed binds the receive port, sends the
// heartbeat on an interval, decrypts each datagram with Salsa20 and
// hands decoded packets to a consumer callback.
//
// The feed keeps only the latest packet under backpressure; a slow
// consumer sees fresh data, never a growing backlog.
package feed

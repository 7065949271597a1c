// Package domain defines the core domain models for LapStream.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling:
//
//   - Frame: one named message unit on the live connection
//   - Sample: a telemetry reading plus its local receipt time
//   - Packet: the decoded simulator-interface datagram
//   - Session / Lap: recording lifecycle entities
//   - DomainError: structured error codes for the whole system
package domain

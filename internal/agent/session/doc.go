// Package session drives telemetry recording sessions.
//
// The service consumes decoded simulator packets, converts them into
// telemetry readings, detects lap completions from the packet lap
// counter, tracks the session best lap and publishes the resulting
// events on the shared bus:
//
//	telemetry_data  every packet
//	lap_completed   when the lap counter advances
//	best_lap        when a completed lap beats the session best
//	session_update  on session start and stop
//
// Sessions and laps are persisted through the storage layer when a
// store is attached.
package session

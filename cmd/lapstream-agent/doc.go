// Package main provides the entry point for lapstream-agent.
//
// lapstream-agent ingests the simulator's UDP telemetry stream,
// records sessions and laps, and fans events out to WebSocket
// consumers.
package main

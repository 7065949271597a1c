// Package httpapi provides the agent's REST endpoints.
//
// It implements read-only session and lap queries against the storage
// layer plus session start/stop control, served alongside the
// WebSocket fanout endpoint.
package httpapi

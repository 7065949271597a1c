// Package storage persists sessions and laps in an embedded Badger
// database.
//
// Records are stored as JSON under prefixed keys:
//
//	session/<session-id>
//	lap/<session-id>/<lap-id>
//
// The store runs a periodic value-log GC loop for the lifetime of the
// process and refuses operations after Close.
package storage

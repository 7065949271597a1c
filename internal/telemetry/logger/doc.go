// Package logger provides structured logging for LapStream.
//
// It wraps the standard library log/slog to provide structured JSON
// logging with a configurable level and format.
//
// Features:
//   - JSON structured logging (default) or text for consoles
//   - Dynamic log level adjustment at runtime
//   - Context-aware logging with connection ID propagation
//   - Package-level helpers bound to a swappable default logger
package logger

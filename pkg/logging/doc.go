// Package logging provides structured logging for the proxy with unified
// log handling and flexible output formatting.
//
// The package is a thin facade over Go's standard slog package. Every log
// entry carries a timestamp, a level, a subsystem identifier, the message,
// and optionally an error. Output is text or JSON, selected at
// initialization.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, "text", os.Stderr)
//
//	logging.Info("Bootstrap", "application starting up")
//	logging.Debug("Config", "loaded configuration from %s", configPath)
//	logging.Warn("Cache", "refresh failed, serving previous snapshot")
//	logging.Error("Upstream", err, "request failed")
//
// Subsystem names are free-form but should stay stable per package so log
// output can be filtered. Credentials must never reach a log call; the
// token package's Redacted type renders as a marker if one slips through
// formatting.
package logging

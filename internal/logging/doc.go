// Package logging assembles the structured slog loggers used across
// recsync.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standardized field keys so every component tags
// transactions and containers the same way. A no-op logger is provided for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging

// Package config loads, validates, and defaults the recsync TOML
// configuration.
//
// Load resolves the config file (explicit path, then
// ~/.config/recsync/config.toml, then ./recsync.toml), decodes it over the
// repository defaults, expands all path fields, and validates the result.
// Timing values are expressed in seconds in the file and exposed as
// time.Duration accessors for the engine.
package config

// Package config loads, normalizes, and validates the TOML configuration for
// transskribo.
//
// Load resolves the file (explicit path, ./config.toml, then
// ~/.config/transskribo/config.toml), decodes it over Default values, and
// expands ~ in path fields. Validation runs separately so CLI flag overrides
// can be layered on top before the final check.
package config

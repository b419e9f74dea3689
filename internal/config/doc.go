// Package config holds the settings of an upgrade run.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// ROUTEROS_* environment variables, then command-line flags. Credentials are
// accepted from the environment and flags only and are never read from or
// written to disk.
package config

// Package optionstore defines the option store contract used by the settings
// engine and ships two implementations: an in-memory store for tests and
// examples, and a Postgres store backed by pgx.
//
// Records are addressed by their record name (the part of a storage key
// before the first bracket). Values are JSON-like shapes: strings, string
// slices, or nested map[string]any records. Every record carries an autoload
// hint that hosts may use to preload frequently read options.
package optionstore

// Package database opens and supervises bun connections: configuration
// loading with environment overrides, a manager per connection with health
// checks and reconnects, a registry of named connections, query hooks,
// logging, and classification of driver errors.
package database

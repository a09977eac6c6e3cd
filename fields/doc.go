// Package fields provides column descriptors and bun column types for
// arrays, bounded text and naive timestamps.
package fields

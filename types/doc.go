// Package types holds the value types shared across ormkit: the closed set of
// serializable values, ordered mappings, JSON column helpers, filters and
// pagination containers.
package types

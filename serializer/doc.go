// Package serializer turns model entities into ordered, JSON-safe mappings,
// resolving relations one level deep.
package serializer

// Package repository provides a generic query wrapper over Bun: filter
// lookups, ordering, aggregates, projections, raw SQL, pagination, and
// transactions.
package repository

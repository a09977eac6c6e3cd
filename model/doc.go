// Package model builds per-type accessor tables from bun struct tags and
// wraps loaded rows as active-record instances with explicit relation state.
package model

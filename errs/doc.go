// Package errs defines the flat error taxonomy of ormkit and the HTTP
// constants that travel with it.
package errs

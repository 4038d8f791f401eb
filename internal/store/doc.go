// Package store provides abstractions for data persistence. Interfaces
// here are implemented by the postgres platform package; services and the
// worker depend only on these interfaces so tests can substitute in-memory
// fakes.
package store

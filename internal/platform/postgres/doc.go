// Package postgres provides PostgreSQL implementations of the store
// interfaces. All stores accept a store.DBTX so they can run against a
// plain connection or inside a transaction created by the caller.
package postgres

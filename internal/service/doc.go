// Package service contains the application services sitting between the
// HTTP handlers and the stores. Services own transaction boundaries and
// translate store sentinel errors into service-level ones so handlers
// never import the store package's error vocabulary.
package service

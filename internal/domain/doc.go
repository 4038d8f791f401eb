// Package domain contains the core entities of the content generation
// system: tasks, providers, provider accounts, task assignments, and the
// content artifacts produced by successful attempts. Entities validate
// themselves and carry no persistence or transport concerns.
package domain

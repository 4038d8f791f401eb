// Package config defines the application configuration structure and
// loading logic. Configuration is read from an optional YAML file and
// FORGE_-prefixed environment variables, then validated before use.
package config

// Package api handles incoming HTTP requests, request validation, and
// response formatting. It is the adapter between external clients and the
// internal services, translating HTTP concerns into task distribution and
// provider management operations.
package api

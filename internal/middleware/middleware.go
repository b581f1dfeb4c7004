// Package middleware holds the Echo middleware of the API: request ids,
// the request logger, Clerk authentication with tenant and role guards,
// rate limiting, metrics, tracing and the global error handler.
package middleware

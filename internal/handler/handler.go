// Package handler is the HTTP layer. Handlers bind and validate requests
// through the typed pipeline in base.go, read the caller from the auth
// middleware and call the service layer.
package handler

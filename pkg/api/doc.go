// Package api implements the HTTP server (Gin-based) of form-relay: access
// logging, panic recovery, CORS, the health and metrics routes, and
// registration of the feature controllers.
package api

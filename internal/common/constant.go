// Package common contains HTTP header names and small byte
// helpers used across docmark components.
package common

const (
	// AuthorizationHeader carries the bearer credential on outbound requests.
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	ContentTypeHeader = "Content-Type"
	AcceptHeader      = "Accept"
	ContentTypeJSON   = "application/json"
)

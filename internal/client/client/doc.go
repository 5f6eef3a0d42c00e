// Package client is the docmark API gateway: the only code that talks to
// the backend.
//
// # Overview
//
//  1. Gateway sends JSON and multipart requests with the bearer token read
//     from a TokenStore, under a fixed per-request timeout, and normalises
//     2xx bodies (enveloped {"data","message"} or bare) into a Response.
//  2. HTTPClient implements the typed Client interface (auth, files,
//     statistics) on top of a Gateway.
//
// # Error Handling
//
// Every failure is returned as exactly one *RequestError whose Kind is
// derived from the HTTP status (see KindForStatus) or from the transport
// failure (KindTimeout, KindNetwork, KindCanceled). Use errors.As or KindOf
// to inspect it; errors.Is matches ErrUnauthorized and ErrUnavailable.
//
// Each error except KindCanceled is also reported to the Notifier given
// with WithNotifier, and 401 responses additionally run the handler given
// with WithUnauthorizedHandler. Both are side channels: the error is still
// returned to the caller.
package client

// Package api provides the HTTP surface of Fleet Core: the admin REST
// API and the device WebSocket endpoint.
//
// The REST API is consumed by the admin layer, which authenticates with
// HMAC-signed bearer tokens (the secret is shared via configuration;
// Fleet Core validates, never issues). Devices connect on the configured
// WebSocket path and authenticate in-band with the hello handshake, so
// that route carries no bearer auth.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

// Package api provides the HTTP API and the device WebSocket endpoint for PhaseLink Core.
//
// This package provides:
//   - Account endpoints: sign-up against a device pairing code, and Basic-auth login
//   - Telemetry endpoints: sensor writes, 24-hour queries, power and energy analytics
//   - Remote control: relay a phase command to a connected device, read its status
//   - The device WebSocket endpoint, handed to the link manager per connection
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//
// # Architecture
//
// Operators talk to the REST endpoints. Devices dial the WebSocket endpoint
// and identify themselves with a connect frame; from then on the link
// manager owns the connection, and remote-control requests reach the device
// through the relay.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Authentication
//
// Login and sign-up return an HS256 bearer token carrying the account's
// device. Writing telemetry requires a token. Analytics and remote-control
// accept one optionally and use its device when the request names none.
//
// # Graceful Degradation
//
// The server runs without InfluxDB. Telemetry endpoints then answer 503,
// while device links and remote control keep working.
package api

// Package gateway wires the petition-gateway server together and serves its HTTP API.
//
// # Overview
//
// The Gateway owns the credential store, the SRP engine for the configured
// group, the ephemeral handshake registry, the session token service and the
// account service that ties them together. It exposes them through a chi
// router and, optionally, a gRPC listener carrying only the standard health
// service.
//
// # HTTP API
//
//   - GET /health - Liveness check
//   - POST /auth/register - Self-registration with a client-derived salt and verifier
//   - POST /login/init - Start an SRP login; returns salt, B and group
//   - POST /login/verify - Finish the login; returns M2, the token and the session cookie
//   - GET /session - Claims of the presented token
//   - POST /logout - Clear the cookie and revoke the token when revocation is enabled
//   - POST /auth/password/init - Start a rotation handshake (session required)
//   - POST /auth/password/verify - Prove the current secret and store the new credential
//   - POST /admin/identities - Provision an identity (super-admin, department-admin)
//   - DELETE /admin/identities/{id} - Remove an identity (super-admin)
//   - GET /admin/audit - Security event log (super-admin)
//
// Tokens are accepted from the Authorization header or the session cookie.
// Errors are JSON bodies of the form {"error": "..."}; an expired or missing
// handshake additionally sets "restart": true so clients know to begin again.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // returns nil once ctx is canceled and shutdown completes
//
// When tailscale.enabled is set the listeners come from an embedded tsnet
// node instead of the host network.
package gateway

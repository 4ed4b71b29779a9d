// Package api defines the JSON request and response bodies exchanged between
// petition-gateway and its clients.
//
// All SRP values (salts, verifiers, ephemerals and proofs) are encoded as
// lowercase hex strings, matching the secure-remote-password JavaScript
// library used by the browser frontend.
package api

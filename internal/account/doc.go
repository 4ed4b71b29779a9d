// Package account implements the user-facing authentication flows:
// registration, two-phase SRP login, password rotation and administrator
// provisioning. It owns no state of its own; credentials live in the store
// and in-flight handshakes in the handshake registry.
//
// Security-relevant outcomes (registrations, logins, rotations, provisioning
// and deletions) are appended to the store's audit log. A failed append is
// logged and does not fail the flow that produced it.
package account

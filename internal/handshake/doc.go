// Package handshake parks server-side SRP state between the init and verify
// round-trips. Each identity has at most one pending handshake; it is consumed
// by the first verify attempt and expires after a TTL.
package handshake

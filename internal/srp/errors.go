// ABOUTME: Sentinel errors returned by the SRP engine
// ABOUTME: Protocol failures are terminal for the attempt and never retried

package srp

import "errors"

var (
	// ErrMalformedPublicValue is returned when a peer's public ephemeral is zero mod N
	// or otherwise unusable.
	ErrMalformedPublicValue = errors.New("malformed public value")

	// ErrProofMismatch is returned when a session proof does not match the local derivation.
	ErrProofMismatch = errors.New("proof mismatch")

	// ErrGroupMismatch is returned when the peer names a different group than ours.
	ErrGroupMismatch = errors.New("srp group mismatch")

	// ErrInvalidSalt is returned for salts that are not exactly SaltLength bytes.
	ErrInvalidSalt = errors.New("invalid salt")

	// ErrInvalidVerifier is returned for verifiers outside (1, N).
	ErrInvalidVerifier = errors.New("invalid verifier")
)

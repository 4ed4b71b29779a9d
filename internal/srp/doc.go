// Package srp implements SRP-6a (RFC 5054 2048-bit group, SHA-256) with the
// conventions of the secure-remote-password JavaScript library:
//
//	k  = H(N | PAD(g))
//	x  = H(s | H(I ":" p))
//	v  = g^x
//	B  = k*v + g^b
//	u  = H(PAD(A) | PAD(B))
//	S  = (A * v^u)^b
//	K  = H(S)
//	M1 = H(H(N) xor H(g) | H(I) | s | A | B | K)
//	M2 = H(A | M1 | K)
//
// Public values and verifiers are padded to the width of N. The Engine is
// stateless and safe for concurrent use; callers park the server secret
// between the two round-trips of a handshake.
package srp

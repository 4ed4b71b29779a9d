// ABOUTME: SRP-6a server and client computations over a registered Group
// ABOUTME: Stateless; handshake state is parked by the caller between round-trips

package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// SaltLength is the byte length of generated and accepted salts.
const SaltLength = 32

// ephemeralLength is the byte length of random ephemeral secrets.
const ephemeralLength = 32

// Ephemeral is a one-time key pair. Secret never leaves the side that generated it.
type Ephemeral struct {
	Secret []byte
	Public []byte
}

// ServerSession is the server's view of a handshake once A is known.
type ServerSession struct {
	Key []byte

	clientPublic []byte
	clientProof  []byte
}

// ClientSession is the client's view of a handshake once B is known.
type ClientSession struct {
	Key   []byte
	Proof []byte
}

// Engine performs SRP computations for a single group.
type Engine struct {
	group *Group
}

// NewEngine creates an engine bound to group.
func NewEngine(group *Group) *Engine {
	return &Engine{group: group}
}

// NewEngineByName looks up a registered group and binds an engine to it.
func NewEngineByName(name string) (*Engine, error) {
	g, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewEngine(g), nil
}

// Group returns the engine's group.
func (e *Engine) Group() *Group {
	return e.group
}

// CheckGroup rejects a peer-declared group that differs from the engine's.
// An empty name is accepted only when the engine runs DefaultGroup, which is
// what clients that predate group negotiation derive under.
func (e *Engine) CheckGroup(name string) error {
	if name == "" && e.group.Name == DefaultGroup {
		return nil
	}
	if name != e.group.Name {
		return fmt.Errorf("%w: peer uses %q, server uses %q", ErrGroupMismatch, name, e.group.Name)
	}
	return nil
}

// GenerateSalt returns SaltLength random bytes.
func (e *Engine) GenerateSalt() ([]byte, error) {
	return randomBytes(SaltLength)
}

// ValidateSalt checks that salt has the expected width.
func ValidateSalt(salt []byte) error {
	if len(salt) != SaltLength {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltLength)
	}
	return nil
}

// ValidateVerifier checks that v is a usable group element.
func (e *Engine) ValidateVerifier(verifier []byte) error {
	v := new(big.Int).SetBytes(verifier)
	if len(verifier) > e.group.size || v.Cmp(big.NewInt(1)) <= 0 || v.Cmp(e.group.N) >= 0 {
		return ErrInvalidVerifier
	}
	return nil
}

// DerivePrivateKey computes x for the given salt, identity and secret.
func (e *Engine) DerivePrivateKey(salt []byte, identityID, secret string) ([]byte, error) {
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}
	return e.group.Derive(salt, identityID, secret), nil
}

// DeriveVerifier computes v = g^x mod N, padded to the group width.
func (e *Engine) DeriveVerifier(salt []byte, identityID, secret string) ([]byte, error) {
	x, err := e.DerivePrivateKey(salt, identityID, secret)
	if err != nil {
		return nil, err
	}
	return e.VerifierFromPrivateKey(x), nil
}

// VerifierFromPrivateKey computes g^x mod N for an already derived x.
func (e *Engine) VerifierFromPrivateKey(x []byte) []byte {
	v := new(big.Int).Exp(e.group.G, new(big.Int).SetBytes(x), e.group.N)
	return e.group.pad(v.Bytes())
}

// ValidatePublic rejects a peer ephemeral that is empty, wider than N or zero mod N.
func (e *Engine) ValidatePublic(public []byte) error {
	_, err := e.publicValue(public)
	return err
}

// GenerateServerEphemeral returns b and B = (k*v + g^b) mod N.
func (e *Engine) GenerateServerEphemeral(verifier []byte) (*Ephemeral, error) {
	if err := e.ValidateVerifier(verifier); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(verifier)
	for {
		secret, err := randomBytes(ephemeralLength)
		if err != nil {
			return nil, err
		}
		B := e.serverPublic(new(big.Int).SetBytes(secret), v)
		if B.Sign() == 0 {
			continue
		}
		return &Ephemeral{Secret: secret, Public: e.group.pad(B.Bytes())}, nil
	}
}

// GenerateClientEphemeral returns a and A = g^a mod N.
func (e *Engine) GenerateClientEphemeral() (*Ephemeral, error) {
	for {
		secret, err := randomBytes(ephemeralLength)
		if err != nil {
			return nil, err
		}
		A := new(big.Int).Exp(e.group.G, new(big.Int).SetBytes(secret), e.group.N)
		if A.Sign() == 0 {
			continue
		}
		return &Ephemeral{Secret: secret, Public: e.group.pad(A.Bytes())}, nil
	}
}

// ComputeSessionKeyServerSide derives K and the expected client proof M1.
// B is recomputed from b and v so only the secret half needs to be parked.
func (e *Engine) ComputeSessionKeyServerSide(serverSecret, clientPublic, salt []byte, identityID string, verifier []byte) (*ServerSession, error) {
	A, err := e.publicValue(clientPublic)
	if err != nil {
		return nil, err
	}
	if err := e.ValidateVerifier(verifier); err != nil {
		return nil, err
	}

	N := e.group.N
	b := new(big.Int).SetBytes(serverSecret)
	v := new(big.Int).SetBytes(verifier)
	B := e.serverPublic(b, v)

	u := e.scramble(A, B)
	if u.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero scrambling parameter", ErrMalformedPublicValue)
	}

	// S = (A * v^u) ^ b mod N
	S := new(big.Int).Exp(v, u, N)
	S.Mul(S, A).Mod(S, N)
	S.Exp(S, b, N)

	key := hashBytes(e.group.pad(S.Bytes()))
	paddedA := e.group.pad(A.Bytes())
	return &ServerSession{
		Key:          key,
		clientPublic: paddedA,
		clientProof:  e.clientProof(identityID, salt, paddedA, e.group.pad(B.Bytes()), key),
	}, nil
}

// ComputeServerProof verifies the client's M1 and returns M2 = H(A | M1 | K).
// This comparison is the only point at which a login is accepted.
func (e *Engine) ComputeServerProof(session *ServerSession, clientProof []byte) ([]byte, error) {
	if session == nil || subtle.ConstantTimeCompare(session.clientProof, clientProof) != 1 {
		return nil, ErrProofMismatch
	}
	return hashBytes(session.clientPublic, session.clientProof, session.Key), nil
}

// ComputeSessionKeyClientSide derives K and the client proof M1 from the
// server's salt and public ephemeral.
func (e *Engine) ComputeSessionKeyClientSide(clientSecret, serverPublic, salt []byte, identityID string, privateKey []byte) (*ClientSession, error) {
	B, err := e.publicValue(serverPublic)
	if err != nil {
		return nil, err
	}

	N := e.group.N
	a := new(big.Int).SetBytes(clientSecret)
	A := new(big.Int).Exp(e.group.G, a, N)
	x := new(big.Int).SetBytes(privateKey)

	u := e.scramble(A, B)
	if u.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero scrambling parameter", ErrMalformedPublicValue)
	}

	// S = (B - k * g^x) ^ (a + u*x) mod N
	kgx := new(big.Int).Exp(e.group.G, x, N)
	kgx.Mul(kgx, e.group.k)
	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)
	S := new(big.Int).Exp(base, exp, N)

	key := hashBytes(e.group.pad(S.Bytes()))
	return &ClientSession{
		Key:   key,
		Proof: e.clientProof(identityID, salt, e.group.pad(A.Bytes()), e.group.pad(B.Bytes()), key),
	}, nil
}

// VerifyServerProof checks M2 on the client side, proving the server knew v.
func (e *Engine) VerifyServerProof(clientPublic []byte, session *ClientSession, serverProof []byte) error {
	if session == nil {
		return ErrProofMismatch
	}
	expected := hashBytes(e.group.pad(clientPublic), session.Proof, session.Key)
	if subtle.ConstantTimeCompare(expected, serverProof) != 1 {
		return ErrProofMismatch
	}
	return nil
}

// serverPublic computes B = (k*v + g^b) mod N.
func (e *Engine) serverPublic(b, v *big.Int) *big.Int {
	N := e.group.N
	kv := new(big.Int).Mul(e.group.k, v)
	gb := new(big.Int).Exp(e.group.G, b, N)
	return kv.Add(kv, gb).Mod(kv, N)
}

// publicValue parses a peer's ephemeral and rejects values that are zero mod N.
func (e *Engine) publicValue(raw []byte) (*big.Int, error) {
	if len(raw) == 0 || len(raw) > e.group.size {
		return nil, ErrMalformedPublicValue
	}
	val := new(big.Int).SetBytes(raw)
	if new(big.Int).Mod(val, e.group.N).Sign() == 0 {
		return nil, ErrMalformedPublicValue
	}
	return val, nil
}

// scramble computes u = H(PAD(A) | PAD(B)).
func (e *Engine) scramble(A, B *big.Int) *big.Int {
	return new(big.Int).SetBytes(hashBytes(e.group.pad(A.Bytes()), e.group.pad(B.Bytes())))
}

// clientProof computes M1 = H(H(N) xor H(g) | H(I) | s | A | B | K).
func (e *Engine) clientProof(identityID string, salt, paddedA, paddedB, key []byte) []byte {
	return hashBytes(e.group.groupXY, hashBytes([]byte(identityID)), salt, paddedA, paddedB, key)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("srp: read random: %w", err)
	}
	return b, nil
}

// ABOUTME: SRP-6a group parameters (prime, generator, key derivation) shared by client and server
// ABOUTME: Registers the RFC 5054 2048-bit group with SHA-256 and Argon2id derivations

package srp

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Group names. Both sides of a handshake must agree on one of these.
const (
	GroupSHA256   = "rfc5054-2048-sha256"
	GroupArgon2id = "rfc5054-2048-argon2id"

	// DefaultGroup is wire compatible with the secure-remote-password JS clients.
	DefaultGroup = GroupSHA256
)

// Argon2id parameters for GroupArgon2id.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
)

// rfc5054N2048 is the 2048-bit safe prime from RFC 5054 Appendix A.
const rfc5054N2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// Derive computes the private key x from salt, identity and secret.
type Derive func(salt []byte, identityID, secret string) []byte

// Group holds the agreed parameters of an SRP deployment.
type Group struct {
	Name   string
	N      *big.Int
	G      *big.Int
	Derive Derive

	// Precomputed values, filled by newGroup.
	k       *big.Int
	size    int
	groupXY []byte // H(N) xor H(g)
}

var (
	groupsMu sync.RWMutex
	groups   = map[string]*Group{}
)

func init() {
	n, ok := new(big.Int).SetString(rfc5054N2048, 16)
	if !ok {
		panic("srp: invalid RFC 5054 prime")
	}
	mustRegister(newGroup(GroupSHA256, n, big.NewInt(2), deriveSHA256))
	mustRegister(newGroup(GroupArgon2id, n, big.NewInt(2), deriveArgon2id))
}

func newGroup(name string, n, g *big.Int, derive Derive) *Group {
	grp := &Group{
		Name:   name,
		N:      n,
		G:      g,
		Derive: derive,
		size:   (n.BitLen() + 7) / 8,
	}

	// k = H(N | PAD(g))
	grp.k = new(big.Int).SetBytes(hashBytes(n.Bytes(), grp.pad(g.Bytes())))

	hN := hashBytes(n.Bytes())
	hG := hashBytes(g.Bytes())
	grp.groupXY = make([]byte, len(hN))
	for i := range hN {
		grp.groupXY[i] = hN[i] ^ hG[i]
	}
	return grp
}

func mustRegister(g *Group) {
	if err := Register(g); err != nil {
		panic(err)
	}
}

// Register makes a group available to Lookup. Names must be unique.
func Register(g *Group) error {
	if g == nil || g.Name == "" || g.N == nil || g.G == nil || g.Derive == nil {
		return fmt.Errorf("srp: incomplete group definition")
	}
	groupsMu.Lock()
	defer groupsMu.Unlock()
	if _, exists := groups[g.Name]; exists {
		return fmt.Errorf("srp: group %q already registered", g.Name)
	}
	if g.k == nil {
		g = newGroup(g.Name, g.N, g.G, g.Derive)
	}
	groups[g.Name] = g
	return nil
}

// Lookup returns the registered group with the given name.
func Lookup(name string) (*Group, error) {
	groupsMu.RLock()
	defer groupsMu.RUnlock()
	g, ok := groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown group %q", ErrGroupMismatch, name)
	}
	return g, nil
}

// GroupNames lists registered group names in sorted order.
func GroupNames() []string {
	groupsMu.RLock()
	defer groupsMu.RUnlock()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the byte width of group elements (public values, verifiers).
func (g *Group) Size() int {
	return g.size
}

// pad left-pads b with zeros to the byte width of N.
func (g *Group) pad(b []byte) []byte {
	if len(b) >= g.size {
		return b
	}
	padded := make([]byte, g.size)
	copy(padded[g.size-len(b):], b)
	return padded
}

// deriveSHA256 computes x = H(s | H(I ":" p)).
func deriveSHA256(salt []byte, identityID, secret string) []byte {
	inner := sha256.Sum256([]byte(identityID + ":" + secret))
	return hashBytes(salt, inner[:])
}

// deriveArgon2id computes x = H(s | Argon2id(I ":" p, s)).
func deriveArgon2id(salt []byte, identityID, secret string) []byte {
	inner := argon2.IDKey([]byte(identityID+":"+secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hashBytes(salt, inner)
}

// hashBytes returns SHA-256 over the concatenation of parts.
func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

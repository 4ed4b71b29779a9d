// ABOUTME: In-memory denylist of revoked token IDs backed by an expirable LRU
// ABOUTME: Entries live until the revoked token would have expired anyway

package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultDenylistSize bounds the number of revoked token IDs kept in memory.
const DefaultDenylistSize = 10000

// Denylist remembers revoked jti values. Once full, the oldest revocations
// are dropped first.
type Denylist struct {
	entries *expirable.LRU[string, time.Time]
}

// NewDenylist creates a denylist. ttl should be at least the token lifetime so
// no entry is dropped while its token is still valid.
func NewDenylist(maxEntries int, ttl time.Duration) *Denylist {
	if maxEntries <= 0 {
		maxEntries = DefaultDenylistSize
	}
	return &Denylist{
		entries: expirable.NewLRU[string, time.Time](maxEntries, nil, ttl),
	}
}

// Add revokes jti until expiresAt.
func (d *Denylist) Add(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	d.entries.Add(jti, expiresAt)
}

// Contains reports whether jti is revoked and its token not yet expired at now.
func (d *Denylist) Contains(jti string, now time.Time) bool {
	expiresAt, ok := d.entries.Get(jti)
	return ok && now.Before(expiresAt)
}

// Len returns the number of remembered revocations.
func (d *Denylist) Len() int {
	return d.entries.Len()
}

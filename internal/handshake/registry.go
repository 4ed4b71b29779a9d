// ABOUTME: Thread-safe registry of pending SRP handshakes parked between init and verify
// ABOUTME: Entries are single-use, expire after a TTL and are bounded in number

package handshake

import (
	"bytes"
	"container/list"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// ErrNoPendingHandshake is returned when no unexpired handshake with the
// requested purpose exists for the identity. The client must restart from init.
var ErrNoPendingHandshake = errors.New("no pending handshake")

// Purpose distinguishes login handshakes from password-rotation handshakes.
type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRotation Purpose = "rotation"
)

// Defaults applied when Config fields are zero.
const (
	DefaultTTL           = 2 * time.Minute
	DefaultSweepInterval = 30 * time.Second
	DefaultMaxPending    = 10000
)

// Config controls registry behavior.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxPending    int

	// DecoyKey seeds the fake salts handed out for unknown identities.
	// A random key is generated when empty.
	DecoyKey []byte

	// Now overrides the clock, for tests.
	Now func() time.Time

	Logger *slog.Logger
}

// Challenge is returned to the client at init.
type Challenge struct {
	Salt         []byte
	ServerPublic []byte
	Group        string
}

// Result is produced when a handshake completes successfully.
type Result struct {
	ServerProof []byte
	SessionKey  []byte
}

// entry is one parked handshake. serverSecret never leaves the registry.
type entry struct {
	identityID   string
	purpose      Purpose
	serverSecret []byte
	serverPublic []byte
	clientPublic []byte
	salt         []byte
	verifier     []byte
	createdAt    time.Time
	decoy        bool
	element      *list.Element
}

// Registry parks server-side handshake state keyed by identity. At most one
// handshake per identity is pending; a new Begin supersedes the previous one.
type Registry struct {
	engine *srp.Engine
	creds  store.CredentialStore
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*entry
	order   *list.List // identity IDs in insertion order (oldest at front)

	locks keyedMutex

	ttl        time.Duration
	maxPending int
	decoyKey   []byte
	now        func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a registry that reads verifiers from creds and computes with engine.
// A background goroutine sweeps expired entries until Close is called.
func New(engine *srp.Engine, creds store.CredentialStore, cfg Config) (*Registry, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.DecoyKey) == 0 {
		cfg.DecoyKey = make([]byte, 32)
		if _, err := rand.Read(cfg.DecoyKey); err != nil {
			return nil, fmt.Errorf("generating decoy key: %w", err)
		}
	}

	r := &Registry{
		engine:     engine,
		creds:      creds,
		logger:     cfg.Logger.With("component", "handshake"),
		pending:    make(map[string]*entry),
		order:      list.New(),
		locks:      keyedMutex{locks: make(map[string]*refLock)},
		ttl:        cfg.TTL,
		maxPending: cfg.MaxPending,
		decoyKey:   cfg.DecoyKey,
		now:        cfg.Now,
		done:       make(chan struct{}),
	}
	go r.sweep(cfg.SweepInterval)
	return r, nil
}

// Begin starts a handshake for identityID. clientPublic may be nil; when it is
// given, Complete must present the same value. Unknown identities receive a
// decoy challenge that can never complete.
func (r *Registry) Begin(ctx context.Context, identityID string, purpose Purpose, clientPublic []byte) (*Challenge, error) {
	if clientPublic != nil {
		if err := r.engine.ValidatePublic(clientPublic); err != nil {
			return nil, err
		}
	}

	unlock := r.locks.Lock(identityID)
	defer unlock()

	e := &entry{
		identityID:   identityID,
		purpose:      purpose,
		clientPublic: clientPublic,
	}

	cred, err := r.creds.GetCredential(ctx, identityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.decoy = true
		e.salt, e.verifier = r.decoyCredential(identityID)
	case err != nil:
		return nil, fmt.Errorf("loading credential: %w", err)
	case cred.Group != r.engine.Group().Name:
		// Answered like an unknown identity so the reply does not confirm the account.
		r.logger.Warn("credential stored under a different SRP group",
			"identity_id", identityID, "credential_group", cred.Group, "server_group", r.engine.Group().Name)
		e.decoy = true
		e.salt, e.verifier = r.decoyCredential(identityID)
	default:
		e.salt, e.verifier = cred.Salt, cred.Verifier
	}

	eph, err := r.engine.GenerateServerEphemeral(e.verifier)
	if err != nil {
		return nil, fmt.Errorf("generating server ephemeral: %w", err)
	}
	e.serverSecret = eph.Secret
	e.serverPublic = eph.Public
	e.createdAt = r.now()

	r.mu.Lock()
	r.putLocked(e)
	r.mu.Unlock()

	r.logger.Debug("handshake begun", "identity_id", identityID, "purpose", purpose)
	return &Challenge{
		Salt:         e.salt,
		ServerPublic: e.serverPublic,
		Group:        r.engine.Group().Name,
	}, nil
}

// Complete verifies the client's proof against the pending handshake. The
// entry is consumed before verification, so a wrong proof also ends it.
func (r *Registry) Complete(ctx context.Context, identityID string, purpose Purpose, clientPublic, clientProof []byte) (*Result, error) {
	return r.CompleteThen(ctx, identityID, purpose, clientPublic, clientProof, nil)
}

// CompleteThen is Complete followed by commit, which runs only when the proof
// verified and before the identity's lock is released. A Begin for the same
// identity waits until commit returns, so it sees whatever commit stored.
// The handshake stays consumed when commit fails. commit must not call back
// into the registry.
func (r *Registry) CompleteThen(ctx context.Context, identityID string, purpose Purpose, clientPublic, clientProof []byte, commit func(*Result) error) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(identityID)
	defer unlock()

	r.mu.Lock()
	e, ok := r.pending[identityID]
	if !ok || e.purpose != purpose {
		r.mu.Unlock()
		return nil, ErrNoPendingHandshake
	}
	r.removeLocked(e)
	r.mu.Unlock()

	if r.expired(e) {
		return nil, ErrNoPendingHandshake
	}

	if e.clientPublic != nil && !bytes.Equal(e.clientPublic, clientPublic) {
		r.logger.Debug("handshake client public changed", "identity_id", identityID)
		return nil, srp.ErrProofMismatch
	}

	session, err := r.engine.ComputeSessionKeyServerSide(e.serverSecret, clientPublic, e.salt, identityID, e.verifier)
	if err != nil {
		return nil, err
	}

	serverProof, err := r.engine.ComputeServerProof(session, clientProof)
	if err != nil {
		return nil, err
	}
	if e.decoy {
		// Unreachable in practice; nobody knows the decoy secret.
		return nil, srp.ErrProofMismatch
	}

	res := &Result{ServerProof: serverProof, SessionKey: session.Key}
	if commit != nil {
		if err := commit(res); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("handshake completed", "identity_id", identityID, "purpose", purpose)
	return res, nil
}

// Cancel discards any pending handshake for identityID. Returns true if one existed.
func (r *Registry) Cancel(identityID string) bool {
	unlock := r.locks.Lock(identityID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[identityID]
	if !ok {
		return false
	}
	r.removeLocked(e)
	return true
}

// Len returns the number of parked handshakes, including expired ones not yet swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// putLocked parks e, superseding any entry for the same identity and
// evicting the oldest entry when at capacity. Must be called with mu held.
func (r *Registry) putLocked(e *entry) {
	if old, ok := r.pending[e.identityID]; ok {
		r.removeLocked(old)
	}

	if len(r.pending) >= r.maxPending {
		r.evictOldest()
	}

	e.element = r.order.PushBack(e.identityID)
	r.pending[e.identityID] = e
}

// removeLocked drops e. Must be called with mu held.
func (r *Registry) removeLocked(e *entry) {
	r.order.Remove(e.element)
	delete(r.pending, e.identityID)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (r *Registry) evictOldest() {
	front := r.order.Front()
	if front == nil {
		return
	}

	id, _ := front.Value.(string)
	r.order.Remove(front)
	delete(r.pending, id)
	r.logger.Warn("handshake registry full, evicted oldest", "identity_id", id)
}

func (r *Registry) expired(e *entry) bool {
	return !r.now().Before(e.createdAt.Add(r.ttl))
}

// decoyCredential returns a stable salt and a verifier for an identity that
// does not exist, indistinguishable in shape from real ones.
func (r *Registry) decoyCredential(identityID string) (salt, verifier []byte) {
	mac := hmac.New(sha256.New, r.decoyKey)
	mac.Write([]byte("salt:" + identityID))
	salt = mac.Sum(nil)[:srp.SaltLength]

	mac.Reset()
	mac.Write([]byte("verifier:" + identityID))
	verifier = r.engine.VerifierFromPrivateKey(mac.Sum(nil))
	return salt, verifier
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (r *Registry) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runSweep()
		case <-r.done:
			return
		}
	}
}

// runSweep removes all expired entries. Entries are in insertion order, so
// the scan stops at the first live one.
func (r *Registry) runSweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for front := r.order.Front(); front != nil; front = r.order.Front() {
		id, _ := front.Value.(string)
		e := r.pending[id]
		if !r.expired(e) {
			break
		}
		r.removeLocked(e)
		removed++
	}
	if removed > 0 {
		r.logger.Debug("swept expired handshakes", "count", removed)
	}
	return removed
}

// Close stops the background sweep. It is safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		close(r.done)
		r.closed = true
	}
}

// ABOUTME: Account service orchestrating registration, SRP login, password rotation and provisioning
// ABOUTME: Glues the credential store, handshake registry, SRP engine and token service together

package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/handshake"
	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// Account errors
var (
	// ErrCurrentPasswordInvalid is returned when the proof in a rotation fails.
	// The stored credential is left unchanged.
	ErrCurrentPasswordInvalid = errors.New("current password invalid")

	// ErrIdentityMismatch is returned when a session tries to act on another identity.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrForbidden is returned when the actor's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownIdentity is returned when a handshake completes for an
	// identity that no longer exists.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// MaxIdentityIDLength bounds identity IDs.
const MaxIdentityIDLength = 254

// temporarySecretBytes is the entropy of provisioned secrets.
const temporarySecretBytes = 18

// Config wires the service's collaborators.
type Config struct {
	Engine     *srp.Engine
	Store      store.Store
	Handshakes *handshake.Registry
	Tokens     *auth.TokenService
	Logger     *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service implements the account operations exposed over HTTP.
type Service struct {
	engine     *srp.Engine
	store      store.Store
	handshakes *handshake.Registry
	tokens     *auth.TokenService
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an account service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		engine:     cfg.Engine,
		store:      cfg.Store,
		handshakes: cfg.Handshakes,
		tokens:     cfg.Tokens,
		logger:     cfg.Logger.With("component", "account"),
		now:        cfg.Now,
	}
}

// Group returns the SRP group name the server derives under.
func (s *Service) Group() string {
	return s.engine.Group().Name
}

// RegisterRequest carries a client-derived credential for a new submitter.
type RegisterRequest struct {
	IdentityID  string
	DisplayName string
	Salt        []byte
	Verifier    []byte
	Group       string
}

// Register creates a submitter identity from a salt and verifier derived on the client.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.Identity, error) {
	if err := validateIdentityID(req.IdentityID); err != nil {
		return nil, err
	}
	if err := s.validateCredential(req.Group, req.Salt, req.Verifier); err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.IdentityID
	}

	now := s.now().UTC()
	identity := &store.Identity{
		ID:          req.IdentityID,
		DisplayName: displayName,
		Role:        store.RoleSubmitter,
		CreatedAt:   now,
	}
	cred := &store.Credential{
		IdentityID: req.IdentityID,
		Salt:       req.Salt,
		Verifier:   req.Verifier,
		Group:      s.engine.Group().Name,
		UpdatedAt:  now,
	}

	if err := s.store.CreateIdentity(ctx, identity, cred); err != nil {
		return nil, err
	}

	s.logger.Info("identity registered", "identity_id", identity.ID, "role", identity.Role)
	s.audit(ctx, identity.ID, store.AuditRegister, identity.ID, nil)
	return identity, nil
}

// ProvisionRequest describes an identity created by an administrator.
type ProvisionRequest struct {
	IdentityID   string
	DisplayName  string
	Role         store.Role
	DepartmentID *string
}

// Provisioned is the result of Provision. TemporarySecret is shown exactly
// once and must be delivered out of band.
type Provisioned struct {
	Identity        *store.Identity
	TemporarySecret string
}

// Provision creates an identity with a server-generated temporary secret.
// Super-admins may create any role; department-admins only staff in their
// own department.
func (s *Service) Provision(ctx context.Context, actor *auth.Claims, req ProvisionRequest) (*Provisioned, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if err := validateIdentityID(req.IdentityID); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, store.ErrInvalidRole)
	}

	departmentID := req.DepartmentID
	switch actor.Role {
	case store.RoleSuperAdmin:
	case store.RoleDepartmentAdmin:
		if req.Role != store.RoleStaff {
			return nil, fmt.Errorf("%w: department admins may only create staff", ErrForbidden)
		}
		if actor.DepartmentID == nil || *actor.DepartmentID == "" {
			return nil, fmt.Errorf("%w: actor has no department", ErrForbidden)
		}
		if departmentID != nil && *departmentID != *actor.DepartmentID {
			return nil, fmt.Errorf("%w: cannot create staff outside own department", ErrForbidden)
		}
		departmentID = actor.DepartmentID
	default:
		return nil, ErrForbidden
	}

	if req.Role.RequiresDepartment() && (departmentID == nil || *departmentID == "") {
		return nil, fmt.Errorf("%w: role %s requires a department", ErrInvalidRequest, req.Role)
	}
	if !req.Role.RequiresDepartment() {
		departmentID = nil
	}

	secret, err := generateTemporarySecret()
	if err != nil {
		return nil, err
	}
	salt, err := s.engine.GenerateSalt()
	if err != nil {
		return nil, err
	}
	verifier, err := s.engine.DeriveVerifier(salt, req.IdentityID, secret)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.IdentityID
	}

	now := s.now().UTC()
	identity := &store.Identity{
		ID:           req.IdentityID,
		DisplayName:  displayName,
		Role:         req.Role,
		DepartmentID: departmentID,
		CreatedAt:    now,
	}
	cred := &store.Credential{
		IdentityID: req.IdentityID,
		Salt:       salt,
		Verifier:   verifier,
		Group:      s.engine.Group().Name,
		UpdatedAt:  now,
	}
	if err := s.store.CreateIdentity(ctx, identity, cred); err != nil {
		return nil, err
	}

	s.logger.Info("identity provisioned",
		"identity_id", identity.ID,
		"role", identity.Role,
		"by", actor.IdentityID(),
	)
	detail := map[string]any{"role": string(identity.Role)}
	if identity.DepartmentID != nil {
		detail["department"] = *identity.DepartmentID
	}
	s.audit(ctx, actor.IdentityID(), store.AuditProvision, identity.ID, detail)
	return &Provisioned{Identity: identity, TemporarySecret: secret}, nil
}

// BeginLogin starts a login handshake.
func (s *Service) BeginLogin(ctx context.Context, identityID, group string, clientPublic []byte) (*handshake.Challenge, error) {
	if err := s.engine.CheckGroup(group); err != nil {
		return nil, err
	}
	if err := validateIdentityID(identityID); err != nil {
		return nil, err
	}
	return s.handshakes.Begin(ctx, identityID, handshake.PurposeLogin, clientPublic)
}

// LoginResult is returned by a successful CompleteLogin.
type LoginResult struct {
	ServerProof []byte
	Token       string
	Claims      *auth.Claims
}

// CompleteLogin verifies the client proof and issues a session token.
func (s *Service) CompleteLogin(ctx context.Context, identityID string, clientPublic, clientProof []byte) (*LoginResult, error) {
	res, err := s.handshakes.Complete(ctx, identityID, handshake.PurposeLogin, clientPublic, clientProof)
	if err != nil {
		s.logger.Info("login failed", "identity_id", identityID, "error", err)
		if attempted(err) {
			s.audit(ctx, identityID, store.AuditLoginFailed, identityID, map[string]any{"reason": err.Error()})
		}
		return nil, err
	}

	identity, err := s.store.GetIdentity(ctx, identityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	token, claims, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "identity_id", identityID, "role", identity.Role)
	s.audit(ctx, identityID, store.AuditLoginSucceeded, identityID, nil)
	return &LoginResult{ServerProof: res.ServerProof, Token: token, Claims: claims}, nil
}

// BeginRotation starts a rotation handshake proving knowledge of the current secret.
func (s *Service) BeginRotation(ctx context.Context, session *auth.Claims, identityID, group string, clientPublic []byte) (*handshake.Challenge, error) {
	if err := checkSessionOwns(session, identityID); err != nil {
		return nil, err
	}
	if err := s.engine.CheckGroup(group); err != nil {
		return nil, err
	}
	return s.handshakes.Begin(ctx, identityID, handshake.PurposeRotation, clientPublic)
}

// RotationRequest completes a rotation with a client-derived replacement credential.
type RotationRequest struct {
	IdentityID   string
	ClientPublic []byte
	ClientProof  []byte
	NewSalt      []byte
	NewVerifier  []byte
}

// CompleteRotation authenticates the current secret and, only on success,
// replaces the credential with the new salt and verifier.
func (s *Service) CompleteRotation(ctx context.Context, session *auth.Claims, req RotationRequest) ([]byte, error) {
	if err := checkSessionOwns(session, req.IdentityID); err != nil {
		return nil, err
	}
	if err := s.validateCredential(s.engine.Group().Name, req.NewSalt, req.NewVerifier); err != nil {
		return nil, err
	}

	// The swap runs under the registry's identity lock so no login can begin
	// against the old verifier once the proof has been accepted.
	res, err := s.handshakes.CompleteThen(ctx, req.IdentityID, handshake.PurposeRotation, req.ClientPublic, req.ClientProof,
		func(*handshake.Result) error {
			err := s.store.ReplaceCredential(ctx, &store.Credential{
				IdentityID: req.IdentityID,
				Salt:       req.NewSalt,
				Verifier:   req.NewVerifier,
				Group:      s.engine.Group().Name,
				UpdatedAt:  s.now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("replacing credential: %w", err)
			}
			return nil
		})
	if errors.Is(err, srp.ErrProofMismatch) {
		s.logger.Info("password rotation rejected", "identity_id", req.IdentityID)
		s.audit(ctx, req.IdentityID, store.AuditRotateFailed, req.IdentityID, nil)
		return nil, fmt.Errorf("%w: %w", ErrCurrentPasswordInvalid, err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("password rotated", "identity_id", req.IdentityID)
	s.audit(ctx, req.IdentityID, store.AuditRotateSucceeded, req.IdentityID, nil)
	return res.ServerProof, nil
}

// DeleteIdentity removes an identity, its credential and any pending handshake.
func (s *Service) DeleteIdentity(ctx context.Context, actor *auth.Claims, identityID string) error {
	if actor == nil || actor.Role != store.RoleSuperAdmin {
		return ErrForbidden
	}
	if err := s.store.DeleteIdentity(ctx, identityID); err != nil {
		return err
	}
	if s.handshakes != nil {
		s.handshakes.Cancel(identityID)
	}

	s.logger.Info("identity deleted", "identity_id", identityID, "by", actor.IdentityID())
	s.audit(ctx, actor.IdentityID(), store.AuditDeleteIdentity, identityID, nil)
	return nil
}

// ListAudit returns audit entries for super-admins.
func (s *Service) ListAudit(ctx context.Context, actor *auth.Claims, f store.AuditFilter) ([]store.AuditEntry, error) {
	if actor == nil || actor.Role != store.RoleSuperAdmin {
		return nil, ErrForbidden
	}
	if f.Action != nil && !f.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown audit action %q", ErrInvalidRequest, *f.Action)
	}
	return s.store.ListAuditLog(ctx, f)
}

// audit records a security event. Failures are logged and never fail the
// operation being audited.
func (s *Service) audit(ctx context.Context, actorID string, action store.AuditAction, targetID string, detail map[string]any) {
	err := s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Timestamp: s.now().UTC(),
		Detail:    detail,
	})
	if err != nil {
		s.logger.Warn("writing audit log", "action", action, "target", targetID, "error", err)
	}
}

// attempted reports whether a failed login got as far as checking a proof.
func attempted(err error) bool {
	return errors.Is(err, srp.ErrProofMismatch) || errors.Is(err, srp.ErrMalformedPublicValue)
}

// CancelHandshake drops a pending handshake, e.g. when a client abandons login.
func (s *Service) CancelHandshake(identityID string) bool {
	return s.handshakes.Cancel(identityID)
}

func (s *Service) validateCredential(group string, salt, verifier []byte) error {
	if err := s.engine.CheckGroup(group); err != nil {
		return err
	}
	if err := srp.ValidateSalt(salt); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.engine.ValidateVerifier(verifier); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func checkSessionOwns(session *auth.Claims, identityID string) error {
	if session == nil || session.IdentityID() != identityID {
		return ErrIdentityMismatch
	}
	return nil
}

func validateIdentityID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: identity ID is required", ErrInvalidRequest)
	}
	if len(id) > MaxIdentityIDLength {
		return fmt.Errorf("%w: identity ID longer than %d bytes", ErrInvalidRequest, MaxIdentityIDLength)
	}
	if id != strings.TrimSpace(id) {
		return fmt.Errorf("%w: identity ID has surrounding whitespace", ErrInvalidRequest)
	}
	return nil
}

// generateTemporarySecret returns a URL-safe random secret for provisioned identities.
func generateTemporarySecret() (string, error) {
	b := make([]byte, temporarySecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating temporary secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

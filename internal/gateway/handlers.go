// ABOUTME: HTTP handlers for registration, SRP login, session, logout, rotation and administration
// ABOUTME: Decodes api request bodies, calls the account service and encodes api responses

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/petition-gateway/internal/account"
	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/store"
)

// maxBodyBytes bounds request bodies; the largest legitimate body carries
// four 256-byte hex values.
const maxBodyBytes = 64 << 10

// decodeJSON reads a bounded JSON body into v. It writes the 400 response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func sessionFromClaims(c *auth.Claims) api.Session {
	s := api.Session{
		IdentityID:   c.IdentityID(),
		DisplayName:  c.DisplayName,
		Role:         c.Role,
		DepartmentID: c.DepartmentID,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return s
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleRegister handles POST /auth/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := g.accounts.Register(r.Context(), account.RegisterRequest{
		IdentityID:  req.IdentityID,
		DisplayName: req.DisplayName,
		Salt:        req.Salt,
		Verifier:    req.Verifier,
		Group:       req.Group,
	})
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.RegisterResponse{
		IdentityID: identity.ID,
		Role:       identity.Role,
	})
}

// handleLoginInit handles POST /login/init.
func (g *Gateway) handleLoginInit(w http.ResponseWriter, r *http.Request) {
	var req api.InitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, err := g.accounts.BeginLogin(r.Context(), req.IdentityID, req.Group, req.ClientPublicEphemeral)
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.InitResponse{
		Salt:                  ch.Salt,
		ServerPublicEphemeral: ch.ServerPublic,
		Group:                 ch.Group,
	})
}

// handleLoginVerify handles POST /login/verify. On success the token is
// returned in the body and as the session cookie.
func (g *Gateway) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := g.accounts.CompleteLogin(r.Context(), req.IdentityID, req.ClientPublicEphemeral, req.ClientProof)
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	g.tokens.SetCookie(w, res.Token, res.Claims)
	writeJSON(w, http.StatusOK, api.VerifyResponse{
		ServerProof: res.ServerProof,
		Token:       res.Token,
		Claims:      sessionFromClaims(res.Claims),
	})
}

// handleSession handles GET /session.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionFromClaims(claims))
}

// handleLogout handles POST /logout. It always clears the cookie; a valid
// token is also revoked when revocation is enabled.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	g.tokens.Revoke(w, claims)
	if claims != nil {
		g.logger.Info("logout", "identity_id", claims.IdentityID(), "revoked", g.tokens.RevocationEnabled())
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePasswordInit handles POST /auth/password/init.
func (g *Gateway) handlePasswordInit(w http.ResponseWriter, r *http.Request) {
	var req api.InitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := auth.MustClaimsFromContext(r.Context())
	if req.IdentityID == "" {
		req.IdentityID = claims.IdentityID()
	}

	ch, err := g.accounts.BeginRotation(r.Context(), claims, req.IdentityID, req.Group, req.ClientPublicEphemeral)
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.InitResponse{
		Salt:                  ch.Salt,
		ServerPublicEphemeral: ch.ServerPublic,
		Group:                 ch.Group,
	})
}

// handlePasswordVerify handles POST /auth/password/verify.
func (g *Gateway) handlePasswordVerify(w http.ResponseWriter, r *http.Request) {
	var req api.RotateVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := auth.MustClaimsFromContext(r.Context())
	if req.IdentityID == "" {
		req.IdentityID = claims.IdentityID()
	}

	serverProof, err := g.accounts.CompleteRotation(r.Context(), claims, account.RotationRequest{
		IdentityID:   req.IdentityID,
		ClientPublic: req.ClientPublicEphemeral,
		ClientProof:  req.ClientProof,
		NewSalt:      req.NewSalt,
		NewVerifier:  req.NewVerifier,
	})
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.RotateVerifyResponse{ServerProof: serverProof})
}

// handleProvision handles POST /admin/identities.
func (g *Gateway) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req api.ProvisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := store.ParseRole(string(req.Role))
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := g.accounts.Provision(r.Context(), auth.MustClaimsFromContext(r.Context()), account.ProvisionRequest{
		IdentityID:   req.IdentityID,
		DisplayName:  req.DisplayName,
		Role:         role,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.ProvisionResponse{
		IdentityID:      p.Identity.ID,
		Role:            p.Identity.Role,
		DepartmentID:    p.Identity.DepartmentID,
		TemporarySecret: p.TemporarySecret,
	})
}

// handleDeleteIdentity handles DELETE /admin/identities/{id}.
func (g *Gateway) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := g.accounts.DeleteIdentity(r.Context(), auth.MustClaimsFromContext(r.Context()), id); err != nil {
		g.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAudit handles GET /admin/audit.
func (g *Gateway) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := g.accounts.ListAudit(r.Context(), auth.MustClaimsFromContext(r.Context()), filter)
	if err != nil {
		g.sendError(w, r, err)
		return
	}

	resp := api.AuditListResponse{Entries: make([]api.AuditEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, api.AuditEntry{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			TargetID:  e.TargetID,
			Timestamp: e.Timestamp.UTC(),
			Detail:    e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseAuditFilter reads audit query parameters.
func parseAuditFilter(q url.Values) (store.AuditFilter, error) {
	var f store.AuditFilter

	if v := q.Get("action"); v != "" {
		action := store.AuditAction(v)
		f.Action = &action
	}
	if v := q.Get("actor"); v != "" {
		f.ActorID = &v
	}
	if v := q.Get("target"); v != "" {
		f.TargetID = &v
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s: expected RFC 3339 timestamp", p.name)
		}
		*p.dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

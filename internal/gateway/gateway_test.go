// ABOUTME: HTTP-level tests for the gateway routes, cookies, gates and lifecycle
// ABOUTME: Drives SRP handshakes through the router with an in-test client built on the srp engine

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/petition-gateway/internal/account"
	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/config"
	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

const testJWTSecret = "gateway-test-secret-0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
server:
  http_addr: "127.0.0.1:0"
database:
  path: "`+filepath.Join(t.TempDir(), "gateway.db")+`"
auth:
  jwt_secret: "`+testJWTSecret+`"
srp:
  decoy_key: "gateway-test-decoy"
`), config.FormatYAML)
	require.NoError(t, err)
	return cfg
}

// newTestGateway builds a gateway on a temporary SQLite database. mutate runs
// after defaults are applied.
func newTestGateway(t *testing.T, mutate ...func(*config.Config)) *Gateway {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)

	gw, err := NewWithStore(cfg, s, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

// call sends a JSON request through the router.
func call(t *testing.T, gw *Gateway, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func register(t *testing.T, gw *Gateway, id, secret string) {
	t.Helper()
	salt, err := gw.engine.GenerateSalt()
	require.NoError(t, err)
	verifier, err := gw.engine.DeriveVerifier(salt, id, secret)
	require.NoError(t, err)

	rec := call(t, gw, http.MethodPost, api.PathRegister, api.RegisterRequest{
		IdentityID: id,
		Salt:       salt,
		Verifier:   verifier,
		Group:      gw.engine.Group().Name,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// doHandshake runs init against initPath and returns what verify needs.
func doHandshake(t *testing.T, gw *Gateway, initPath, id, secret, token string) (*srp.Ephemeral, *srp.ClientSession) {
	t.Helper()
	eph, err := gw.engine.GenerateClientEphemeral()
	require.NoError(t, err)

	rec := call(t, gw, http.MethodPost, initPath, api.InitRequest{IdentityID: id, ClientPublicEphemeral: eph.Public}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ch := decode[api.InitResponse](t, rec)

	x, err := gw.engine.DerivePrivateKey(ch.Salt, id, secret)
	require.NoError(t, err)
	session, err := gw.engine.ComputeSessionKeyClientSide(eph.Secret, ch.ServerPublicEphemeral, ch.Salt, id, x)
	require.NoError(t, err)
	return eph, session
}

// login performs a full SRP login and returns the verify response recorder.
func login(t *testing.T, gw *Gateway, id, secret string) *httptest.ResponseRecorder {
	t.Helper()
	eph, session := doHandshake(t, gw, api.PathLoginInit, id, secret, "")
	return call(t, gw, http.MethodPost, api.PathLoginVerify, api.VerifyRequest{
		IdentityID:            id,
		ClientPublicEphemeral: eph.Public,
		ClientProof:           session.Proof,
	}, "")
}

func loginToken(t *testing.T, gw *Gateway, id, secret string) string {
	t.Helper()
	rec := login(t, gw, id, secret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.VerifyResponse](t, rec).Token
}

// seedSuperAdmin provisions a super-admin directly through the account service.
func seedSuperAdmin(t *testing.T, gw *Gateway, id string) string {
	t.Helper()
	actor := &auth.Claims{Role: store.RoleSuperAdmin}
	actor.Subject = "test-bootstrap"
	p, err := gw.accounts.Provision(context.Background(), actor, account.ProvisionRequest{
		IdentityID: id,
		Role:       store.RoleSuperAdmin,
	})
	require.NoError(t, err)
	return p.TemporarySecret
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t)
	rec := call(t, gw, http.MethodGet, api.PathHealth, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")

	eph, session := doHandshake(t, gw, api.PathLoginInit, "u1", "S1", "")
	rec := call(t, gw, http.MethodPost, api.PathLoginVerify, api.VerifyRequest{
		IdentityID:            "u1",
		ClientPublicEphemeral: eph.Public,
		ClientProof:           session.Proof,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[api.VerifyResponse](t, rec)
	assert.Equal(t, "u1", body.Claims.IdentityID)
	assert.Equal(t, store.RoleSubmitter, body.Claims.Role)
	require.NoError(t, gw.engine.VerifyServerProof(eph.Public, session, body.ServerProof))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, auth.DefaultCookieName, c.Name)
	assert.Equal(t, body.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.Secure)
	assert.InDelta(t, time.Hour.Seconds(), c.MaxAge, 2)
}

func TestLogin_ProductionCookieIsSecure(t *testing.T) {
	gw := newTestGateway(t, func(cfg *config.Config) {
		cfg.Server.Environment = "production"
		cfg.Auth.SameSite = "strict"
	})

	register(t, gw, "u1", "S1")
	rec := login(t, gw, "u1", "S1")
	require.Equal(t, http.StatusOK, rec.Code)

	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestLogin_NonLocalCookieIsSecure(t *testing.T) {
	gw := newTestGateway(t, func(cfg *config.Config) {
		cfg.Server.Environment = "staging"
	})

	register(t, gw, "u1", "S1")
	rec := login(t, gw, "u1", "S1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestLogin_WrongSecret(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")

	rec := login(t, gw, "u1", "S2")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	body := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "authentication failed", body.Error)
	assert.False(t, body.Restart)
}

func TestLogin_UnknownIdentityLooksLikeWrongSecret(t *testing.T) {
	gw := newTestGateway(t)

	first := call(t, gw, http.MethodPost, api.PathLoginInit, api.InitRequest{IdentityID: "ghost"}, "")
	require.Equal(t, http.StatusOK, first.Code)
	second := call(t, gw, http.MethodPost, api.PathLoginInit, api.InitRequest{IdentityID: "ghost"}, "")
	require.Equal(t, http.StatusOK, second.Code)

	// Decoy salts are stable so repeated probes cannot tell the identity is unknown
	assert.Equal(t, decode[api.InitResponse](t, first).Salt, decode[api.InitResponse](t, second).Salt)

	rec := login(t, gw, "ghost", "S1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication failed", decode[api.ErrorResponse](t, rec).Error)
}

func TestLoginVerify_WithoutInit(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")

	eph, err := gw.engine.GenerateClientEphemeral()
	require.NoError(t, err)
	rec := call(t, gw, http.MethodPost, api.PathLoginVerify, api.VerifyRequest{
		IdentityID:            "u1",
		ClientPublicEphemeral: eph.Public,
		ClientProof:           make([]byte, 32),
	}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.True(t, body.Restart)
	assert.Equal(t, "handshake expired, restart from init", body.Error)
}

func TestLoginVerify_ReplayRejected(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")

	eph, session := doHandshake(t, gw, api.PathLoginInit, "u1", "S1", "")
	req := api.VerifyRequest{IdentityID: "u1", ClientPublicEphemeral: eph.Public, ClientProof: session.Proof}

	first := call(t, gw, http.MethodPost, api.PathLoginVerify, req, "")
	require.Equal(t, http.StatusOK, first.Code)

	replay := call(t, gw, http.MethodPost, api.PathLoginVerify, req, "")
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.True(t, decode[api.ErrorResponse](t, replay).Restart)
}

func TestLoginInit_Rejections(t *testing.T) {
	gw := newTestGateway(t)

	rec := call(t, gw, http.MethodPost, api.PathLoginInit, api.InitRequest{IdentityID: "u1", Group: "rfc5054-1024-sha1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	N := gw.engine.Group().N.Bytes()
	rec = call(t, gw, http.MethodPost, api.PathLoginInit, api.InitRequest{IdentityID: "u1", ClientPublicEphemeral: N}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, gw, http.MethodPost, api.PathLoginInit, api.InitRequest{IdentityID: ""}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Errors(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")

	salt, _ := gw.engine.GenerateSalt()
	verifier, _ := gw.engine.DeriveVerifier(salt, "u1", "S1")
	rec := call(t, gw, http.MethodPost, api.PathRegister, api.RegisterRequest{IdentityID: "u1", Salt: salt, Verifier: verifier}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, gw, http.MethodPost, api.PathRegister, api.RegisterRequest{IdentityID: "u2", Salt: salt[:4], Verifier: verifier}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, api.PathRegister, strings.NewReader(`{"identityId":"u3","salt":"zz"}`))
	raw := httptest.NewRecorder()
	gw.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, "invalid JSON body", decode[api.ErrorResponse](t, raw).Error)
}

func TestRegister_BodyTooLarge(t *testing.T) {
	gw := newTestGateway(t)
	big := `{"identityId":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, api.PathRegister, strings.NewReader(big))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSession_Gate(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")
	token := loginToken(t, gw, "u1", "S1")

	rec := call(t, gw, http.MethodGet, api.PathSession, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, gw, http.MethodGet, api.PathSession, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", decode[api.Session](t, rec).IdentityID)

	// Cookie transport
	req := httptest.NewRequest(http.MethodGet, api.PathSession, nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})
	cookieRec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)

	rec = call(t, gw, http.MethodGet, api.PathSession, nil, token[:len(token)-2]+"xx")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")
	token := loginToken(t, gw, "u1", "S1")

	rec := call(t, gw, http.MethodPost, api.PathLogout, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	// Without revocation the token stays valid until it expires
	rec = call(t, gw, http.MethodGet, api.PathSession, nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Anonymous logout still clears the cookie
	rec = call(t, gw, http.MethodPost, api.PathLogout, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogout_RevokesWhenEnabled(t *testing.T) {
	gw := newTestGateway(t, func(cfg *config.Config) {
		cfg.Auth.Revocation.Enabled = true
	})

	register(t, gw, "u1", "S1")
	token := loginToken(t, gw, "u1", "S1")

	rec := call(t, gw, http.MethodPost, api.PathLogout, nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, gw, http.MethodGet, api.PathSession, nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A fresh login is unaffected
	fresh := loginToken(t, gw, "u1", "S1")
	rec = call(t, gw, http.MethodGet, api.PathSession, nil, fresh)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordRotation(t *testing.T) {
	gw := newTestGateway(t)
	register(t, gw, "u1", "S1")
	register(t, gw, "u2", "T1")
	token := loginToken(t, gw, "u1", "S1")

	rotate := func(id, current, next string) *httptest.ResponseRecorder {
		eph, session := doHandshake(t, gw, api.PathPasswordInit, id, current, token)
		salt, _ := gw.engine.GenerateSalt()
		verifier, _ := gw.engine.DeriveVerifier(salt, id, next)
		return call(t, gw, http.MethodPost, api.PathPasswordVerify, api.RotateVerifyRequest{
			IdentityID:            id,
			ClientPublicEphemeral: eph.Public,
			ClientProof:           session.Proof,
			NewSalt:               salt,
			NewVerifier:           verifier,
		}, token)
	}

	rec := call(t, gw, http.MethodPost, api.PathPasswordInit, api.InitRequest{IdentityID: "u1"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotation needs a session")

	rec = call(t, gw, http.MethodPost, api.PathPasswordInit, api.InitRequest{IdentityID: "u2"}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = rotate("u1", "wrong", "S2")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "current password invalid", decode[api.ErrorResponse](t, rec).Error)
	assert.Equal(t, http.StatusOK, login(t, gw, "u1", "S1").Code, "failed rotation keeps the old secret")

	rec = rotate("u1", "S1", "S2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[api.RotateVerifyResponse](t, rec).ServerProof)

	assert.Equal(t, http.StatusUnauthorized, login(t, gw, "u1", "S1").Code)
	assert.Equal(t, http.StatusOK, login(t, gw, "u1", "S2").Code)
}

func TestAdminIdentities(t *testing.T) {
	gw := newTestGateway(t)
	adminSecret := seedSuperAdmin(t, gw, "root")
	superToken := loginToken(t, gw, "root", adminSecret)

	roads := "roads"
	rec := call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{
		IdentityID:   "da1",
		Role:         store.RoleDepartmentAdmin,
		DepartmentID: &roads,
	}, superToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	da := decode[api.ProvisionResponse](t, rec)
	assert.NotEmpty(t, da.TemporarySecret)
	deptToken := loginToken(t, gw, "da1", da.TemporarySecret)

	rec = call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{IdentityID: "s1", Role: store.RoleStaff}, deptToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	staff := decode[api.ProvisionResponse](t, rec)
	require.NotNil(t, staff.DepartmentID)
	assert.Equal(t, "roads", *staff.DepartmentID)

	rec = call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{IdentityID: "x", Role: store.RoleSuperAdmin}, deptToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{IdentityID: "x", Role: "janitor"}, superToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{IdentityID: "da1", Role: store.RoleSubmitter}, superToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	register(t, gw, "u1", "S1")
	userToken := loginToken(t, gw, "u1", "S1")
	rec = call(t, gw, http.MethodPost, api.PathIdentities, api.ProvisionRequest{IdentityID: "x", Role: store.RoleSubmitter}, userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient role", decode[api.ErrorResponse](t, rec).Error)

	rec = call(t, gw, http.MethodDelete, api.PathIdentities+"/s1", nil, deptToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, gw, http.MethodDelete, api.PathIdentities+"/s1", nil, superToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, gw, http.MethodDelete, api.PathIdentities+"/s1", nil, superToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	gw := newTestGateway(t, func(cfg *config.Config) {
		cfg.CORS.AllowedOrigins = []string{"https://petitions.example.org"}
	})

	req := httptest.NewRequest(http.MethodOptions, api.PathLoginInit, nil)
	req.Header.Set("Origin", "https://petitions.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://petitions.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, api.PathLoginInit, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.GRPCAddr = "127.0.0.1:0"

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Shutdown after Run is a no-op
	assert.NoError(t, gw.Shutdown(context.Background()))
}

func TestRun_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.HTTPAddr = "256.0.0.1:99999"

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Error(t, gw.Run(context.Background()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"
	_, err := OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestAdminAudit(t *testing.T) {
	gw := newTestGateway(t)
	adminSecret := seedSuperAdmin(t, gw, "root")
	superToken := loginToken(t, gw, "root", adminSecret)

	register(t, gw, "u1", "S1")
	require.Equal(t, http.StatusUnauthorized, login(t, gw, "u1", "nope").Code)
	userToken := loginToken(t, gw, "u1", "S1")

	rec := call(t, gw, http.MethodGet, api.PathAudit+"?target=u1&action=login_failed", nil, superToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[api.AuditListResponse](t, rec)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, store.AuditLoginFailed, body.Entries[0].Action)
	assert.Equal(t, "u1", body.Entries[0].TargetID)

	rec = call(t, gw, http.MethodGet, api.PathAudit+"?target=u1&limit=2", nil, superToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[api.AuditListResponse](t, rec).Entries, 2)

	rec = call(t, gw, http.MethodGet, api.PathAudit, nil, userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, gw, http.MethodGet, api.PathAudit+"?since=yesterday", nil, superToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, gw, http.MethodGet, api.PathAudit+"?limit=-1", nil, superToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

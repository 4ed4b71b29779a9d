// ABOUTME: Tests for HTTP authorization middleware and session cookies
// ABOUTME: Covers token extraction, header/cookie precedence, role gating and cookie attributes

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2389/petition-gateway/internal/store"
)

// gatedHandler wraps a handler that records whether it ran and which claims it saw.
func gatedHandler(mw func(http.Handler) http.Handler) (http.Handler, *bool, **Claims) {
	called := false
	var got *Claims
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &called, &got
}

func issue(t *testing.T, tokens *TokenService, identity *store.Identity) string {
	t.Helper()
	token, _, err := tokens.Issue(identity)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func TestGate_BearerToken(t *testing.T) {
	tokens, _ := newTestTokens(t, nil)
	token := issue(t, tokens, staffIdentity())

	handler, called, got := gatedHandler(Gate(tokens))
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !*called {
		t.Fatal("handler was not called")
	}
	if *got == nil || (*got).IdentityID() != "s1" {
		t.Errorf("claims = %+v, want subject s1", *got)
	}
}

func TestGate_CookieToken(t *testing.T) {
	tokens, _ := newTestTokens(t, nil)
	token := issue(t, tokens, staffIdentity())

	handler, called, _ := gatedHandler(Gate(tokens))
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !*called {
		t.Errorf("status = %d, called = %v", rec.Code, *called)
	}
}

func TestGate_BearerWinsOverCookie(t *testing.T) {
	tokens, _ := newTestTokens(t, nil)
	bearer := issue(t, tokens, &store.Identity{ID: "bearer-user", Role: store.RoleSubmitter})
	cookie := issue(t, tokens, &store.Identity{ID: "cookie-user", Role: store.RoleSubmitter})

	handler, _, got := gatedHandler(Gate(tokens))
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookie})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if *got == nil || (*got).IdentityID() != "bearer-user" {
		t.Errorf("claims subject = %v, want bearer-user", *got)
	}
}

func TestGate_Rejects(t *testing.T) {
	tokens, clock := newTestTokens(t, nil)
	valid := issue(t, tokens, staffIdentity())
	expiring := issue(t, tokens, staffIdentity())

	tests := []struct {
		name   string
		header string
		cookie string
		setup  func()
	}{
		{name: "no credentials"},
		{name: "wrong scheme", header: "Basic " + valid},
		{name: "garbage bearer", header: "Bearer garbage"},
		{name: "garbage cookie", cookie: "garbage"},
		{
			name:   "expired",
			header: "Bearer " + expiring,
			setup:  func() { clock.Set(clock.Now().Add(2 * time.Hour)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			handler, called, _ := gatedHandler(Gate(tokens))
			req := httptest.NewRequest(http.MethodGet, "/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if *called {
				t.Error("handler must not run for rejected requests")
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["error"] != "authentication required" {
				t.Errorf("error = %q", body["error"])
			}
		})
	}
}

func TestOptionalGate(t *testing.T) {
	tokens, _ := newTestTokens(t, nil)
	token := issue(t, tokens, staffIdentity())

	t.Run("anonymous", func(t *testing.T) {
		handler, called, got := gatedHandler(OptionalGate(tokens))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
		if !*called || *got != nil {
			t.Errorf("called = %v, claims = %v", *called, *got)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		handler, called, got := gatedHandler(OptionalGate(tokens))
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer nope")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if !*called || *got != nil {
			t.Errorf("called = %v, claims = %v", *called, *got)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		handler, _, got := gatedHandler(OptionalGate(tokens))
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if *got == nil {
			t.Error("claims should be attached")
		}
	})
}

func TestRequireRoles(t *testing.T) {
	tokens, _ := newTestTokens(t, nil)

	tests := []struct {
		role store.Role
		want int
	}{
		{store.RoleSubmitter, http.StatusForbidden},
		{store.RoleStaff, http.StatusForbidden},
		{store.RoleDepartmentAdmin, http.StatusOK},
		{store.RoleSuperAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			token := issue(t, tokens, &store.Identity{ID: "x", Role: tt.role})

			handler, called, _ := gatedHandler(func(next http.Handler) http.Handler {
				return Gate(tokens)(RequireRoles(store.RoleDepartmentAdmin, store.RoleSuperAdmin)(next))
			})
			req := httptest.NewRequest(http.MethodPost, "/admin/identities", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if *called != (tt.want == http.StatusOK) {
				t.Errorf("handler called = %v", *called)
			}
		})
	}
}

func TestRequireRoles_WithoutGate(t *testing.T) {
	handler, called, _ := gatedHandler(RequireRoles(store.RoleSuperAdmin))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized || *called {
		t.Errorf("status = %d, called = %v", rec.Code, *called)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{"", "", true},
		{"Bearer abc", "abc", false},
		{"Bearer ", "", true},
		{"bearer abc", "", true},
		{"Token abc", "", true},
	}
	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		if token != tt.token || (errMsg != "") != tt.wantErr {
			t.Errorf("extractBearerToken(%q) = %q, %q", tt.header, token, errMsg)
		}
	}
}

func TestSetCookie(t *testing.T) {
	tokens, _ := newTestTokens(t, func(cfg *TokenConfig) {
		cfg.Cookie = CookieConfig{Secure: true, Domain: "petitions.example"}
	})
	token, claims, _ := tokens.Issue(staffIdentity())

	rec := httptest.NewRecorder()
	tokens.SetCookie(rec, token, claims)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultCookieName || c.Value != token {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure {
		t.Errorf("HttpOnly = %v, Secure = %v", c.HttpOnly, c.Secure)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.MaxAge != int(time.Hour/time.Second) {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, int(time.Hour/time.Second))
	}
	if c.Path != "/" || c.Domain != "petitions.example" {
		t.Errorf("Path = %q, Domain = %q", c.Path, c.Domain)
	}
}

func TestRevoke_ClearsCookie(t *testing.T) {
	tokens, _ := newTestTokens(t, func(cfg *TokenConfig) {
		cfg.Cookie = CookieConfig{Name: "session"}
	})

	rec := httptest.NewRecorder()
	tokens.Revoke(rec, nil)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	if cookies[0].Name != "session" || cookies[0].Value != "" || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie = %+v, want cleared session cookie", cookies[0])
	}
}

func TestParseSameSite(t *testing.T) {
	tests := map[string]http.SameSite{
		"":       http.SameSiteLaxMode,
		"lax":    http.SameSiteLaxMode,
		"Strict": http.SameSiteStrictMode,
		"none":   http.SameSiteNoneMode,
	}
	for in, want := range tests {
		got, err := ParseSameSite(in)
		if err != nil || got != want {
			t.Errorf("ParseSameSite(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSameSite("sometimes"); err == nil {
		t.Error("expected error for invalid value")
	}
}

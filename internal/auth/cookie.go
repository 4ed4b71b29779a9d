// ABOUTME: Session cookie handling for browser clients
// ABOUTME: Sets an http-only cookie carrying the session token and clears it on logout

package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName matches what existing browser clients send.
const DefaultCookieName = "jwt"

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Name == "" {
		c.Name = DefaultCookieName
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// ParseSameSite converts "lax", "strict" or "none" into an http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid same_site value %q", s)
	}
}

// CookieName returns the name of the session cookie.
func (s *TokenService) CookieName() string {
	return s.cookie.Name
}

// SetCookie writes the session cookie for token. It expires together with the token.
func (s *TokenService) SetCookie(w http.ResponseWriter, token string, claims *Claims) {
	maxAge := int(s.lifetime / time.Second)
	expires := s.now().Add(s.lifetime)
	if claims != nil && claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
		maxAge = int(expires.Sub(s.now()) / time.Second)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

// Revoke clears the session cookie. With a denylist configured, the token
// identified by claims is also rejected by Verify until it expires.
func (s *TokenService) Revoke(w http.ResponseWriter, claims *Claims) {
	if s.denylist != nil && claims != nil && claims.ExpiresAt != nil {
		s.denylist.Add(claims.ID, claims.ExpiresAt.Time)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

// RevocationEnabled reports whether Revoke invalidates tokens server-side.
func (s *TokenService) RevocationEnabled() bool {
	return s.denylist != nil
}

// Package authtest runs a throwaway identity provider for tests: it publishes
// an OIDC discovery document and a JWKS, and mints RS256 tokens.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAudience is the API identifier tokens are minted for.
	DefaultAudience = "coffee-drinks"

	discoveryPath = "/.well-known/openid-configuration"
	jwksPath      = "/.well-known/jwks.json"
)

type signingKey struct {
	id   string
	priv *rsa.PrivateKey
}

// Issuer is an in-process identity provider backed by httptest.Server.
type Issuer struct {
	Server   *httptest.Server
	Audience string

	mu      sync.RWMutex
	keys    []signingKey // newest first; keys[0] signs new tokens
	failing bool

	jwksRequests      atomic.Int64
	discoveryRequests atomic.Int64
}

// NewIssuer starts an issuer with one RSA signing key. It is closed when the test ends.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()

	iss := &Issuer{Audience: DefaultAudience}
	iss.keys = []signingKey{newSigningKey(t)}

	mux := http.NewServeMux()
	mux.HandleFunc(discoveryPath, iss.serveDiscovery)
	mux.HandleFunc(jwksPath, iss.serveJWKS)
	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Server.Close)

	return iss
}

func newSigningKey(t testing.TB) signingKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return signingKey{id: uuid.NewString(), priv: priv}
}

// URL is the issuer identifier, with a trailing slash as Auth0 issues it.
func (i *Issuer) URL() string { return i.Server.URL + "/" }

// JWKSURL is where the key set is published.
func (i *Issuer) JWKSURL() string { return i.Server.URL + jwksPath }

// KeyID returns the id of the current signing key.
func (i *Issuer) KeyID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.keys[0].id
}

// RotateKey publishes a new signing key alongside the old ones.
func (i *Issuer) RotateKey(t testing.TB) string {
	key := newSigningKey(t)
	i.mu.Lock()
	i.keys = append([]signingKey{key}, i.keys...)
	i.mu.Unlock()
	return key.id
}

// SetFailing makes the JWKS and discovery endpoints answer 503.
func (i *Issuer) SetFailing(failing bool) {
	i.mu.Lock()
	i.failing = failing
	i.mu.Unlock()
}

// JWKSRequests counts key set downloads.
func (i *Issuer) JWKSRequests() int64 { return i.jwksRequests.Load() }

// DiscoveryRequests counts discovery document downloads.
func (i *Issuer) DiscoveryRequests() int64 { return i.discoveryRequests.Load() }

// TokenOption adjusts the claims or header of a minted token.
type TokenOption func(*tokenParams)

type tokenParams struct {
	claims jwt.MapClaims
	kid    string
	method jwt.SigningMethod
	key    any
}

// WithPermissions sets the permissions claim.
func WithPermissions(perms ...string) TokenOption {
	return func(s *tokenParams) {
		list := make([]any, 0, len(perms))
		for _, p := range perms {
			list = append(list, p)
		}
		s.claims["permissions"] = list
	}
}

// WithoutPermissions drops the permissions claim entirely.
func WithoutPermissions() TokenOption {
	return func(s *tokenParams) { delete(s.claims, "permissions") }
}

// WithClaim sets an arbitrary claim.
func WithClaim(name string, value any) TokenOption {
	return func(s *tokenParams) { s.claims[name] = value }
}

// WithoutClaim removes a claim.
func WithoutClaim(name string) TokenOption {
	return func(s *tokenParams) { delete(s.claims, name) }
}

// ExpiresAt sets exp. A time in the past yields an expired but validly signed token.
func ExpiresAt(at time.Time) TokenOption {
	return func(s *tokenParams) {
		s.claims["exp"] = at.Unix()
		s.claims["iat"] = at.Add(-time.Hour).Unix()
	}
}

// WithKeyID overrides the kid header.
func WithKeyID(kid string) TokenOption {
	return func(s *tokenParams) { s.kid = kid }
}

// SignedWith signs with an arbitrary method and key, e.g. HS256 with a shared secret.
func SignedWith(method jwt.SigningMethod, key any) TokenOption {
	return func(s *tokenParams) {
		s.method = method
		s.key = key
	}
}

// Token mints a token for the current signing key. By default it is valid for
// an hour and carries no permissions.
func (i *Issuer) Token(t testing.TB, opts ...TokenOption) string {
	t.Helper()

	i.mu.RLock()
	current := i.keys[0]
	i.mu.RUnlock()

	now := time.Now()
	tok := &tokenParams{
		claims: jwt.MapClaims{
			"iss":         i.URL(),
			"sub":         "auth0|barista",
			"aud":         []any{i.Audience},
			"iat":         now.Unix(),
			"exp":         now.Add(time.Hour).Unix(),
			"jti":         uuid.NewString(),
			"permissions": []any{},
		},
		kid:    current.id,
		method: jwt.SigningMethodRS256,
		key:    current.priv,
	}
	for _, opt := range opts {
		opt(tok)
	}

	token := jwt.NewWithClaims(tok.method, tok.claims)
	if tok.kid != "" {
		token.Header["kid"] = tok.kid
	}

	signed, err := token.SignedString(tok.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// PublicKeySet returns the JWKS currently published.
func (i *Issuer) PublicKeySet() jose.JSONWebKeySet {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(i.keys))}
	for _, k := range i.keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &k.priv.PublicKey,
			KeyID:     k.id,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return set
}

func (i *Issuer) isFailing() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.failing
}

func (i *Issuer) serveDiscovery(w http.ResponseWriter, _ *http.Request) {
	i.discoveryRequests.Add(1)
	if i.isFailing() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"issuer":                                i.URL(),
		"jwks_uri":                              i.JWKSURL(),
		"authorization_endpoint":                i.Server.URL + "/authorize",
		"token_endpoint":                        i.Server.URL + "/oauth/token",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (i *Issuer) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	i.jwksRequests.Add(1)
	if i.isFailing() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, i.PublicKeySet())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

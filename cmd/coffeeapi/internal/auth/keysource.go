package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/zitadel/oidc/v3/pkg/client"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/config"
)

const maxKeySetBytes = 1 << 20

// HTTPKeySource downloads a JWKS document from a fixed URL.
type HTTPKeySource struct {
	url    string
	client *http.Client
}

// NewHTTPKeySource creates a source for url. A nil client uses http.DefaultClient.
func NewHTTPKeySource(url string, httpClient *http.Client) *HTTPKeySource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPKeySource{url: url, client: httpClient}
}

// URL returns the JWKS location.
func (s *HTTPKeySource) URL() string { return s.url }

// FetchKeys implements KeySource.
func (s *HTTPKeySource) FetchKeys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks from %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks from %s: unexpected status %d", s.url, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks from %s: %w", s.url, err)
	}
	return &set, nil
}

// DiscoveryKeySource resolves the jwks_uri from the issuer's
// openid-configuration document on first use, then behaves like HTTPKeySource.
type DiscoveryKeySource struct {
	issuer string
	client *http.Client

	mu   sync.Mutex
	jwks *HTTPKeySource
}

// NewDiscoveryKeySource creates a source for issuer.
func NewDiscoveryKeySource(issuer string, httpClient *http.Client) *DiscoveryKeySource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DiscoveryKeySource{issuer: issuer, client: httpClient}
}

// FetchKeys implements KeySource.
func (s *DiscoveryKeySource) FetchKeys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	src, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return src.FetchKeys(ctx)
}

func (s *DiscoveryKeySource) resolve(ctx context.Context) (*HTTPKeySource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jwks != nil {
		return s.jwks, nil
	}

	discovery, err := client.Discover(ctx, s.issuer, s.client)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", s.issuer, err)
	}
	if discovery.JwksURI == "" {
		return nil, errors.New("issuer discovery document has no jwks_uri")
	}

	s.jwks = NewHTTPKeySource(discovery.JwksURI, s.client)
	return s.jwks, nil
}

// NewKeySetFromConfig builds the key set cache described by cfg, using the
// configured JWKS URL or discovery when none is set.
func NewKeySetFromConfig(cfg config.AuthConfig) *KeySet {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	var source KeySource
	if cfg.JWKSURL != "" {
		source = NewHTTPKeySource(cfg.JWKSURL, httpClient)
	} else {
		source = NewDiscoveryKeySource(cfg.Issuer, httpClient)
	}

	return NewKeySet(source, cfg.JWKSCacheTTL, WithUnknownKidTTL(cfg.UnknownKidTTL))
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/config"
)

// KeyProvider resolves a token's key id to a verification key.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (*jose.JSONWebKey, error)
}

// DefaultAlgorithms are accepted when no algorithms are configured.
var DefaultAlgorithms = []string{"RS256"}

var bearerTokenStrings = [][]options.TokenStringOption{{}} // Authorization: Bearer <token>

// BearerToken extracts the token from the Authorization header. A missing
// header, a non-Bearer scheme, or an empty token all fail with
// ErrAuthHeaderMissing.
func BearerToken(r *http.Request) (string, error) {
	token, err := oidctoken.GetTokenString(r.Header.Get, bearerTokenStrings)
	if err != nil {
		return "", newError(KindAuthHeaderMissing, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", newError(KindAuthHeaderMissing, errors.New("empty bearer token"))
	}
	return token, nil
}

type verifierOptions struct {
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
}

// VerifierOption customises the behaviour of the token verifier.
type VerifierOption func(*verifierOptions)

// WithAlgorithms restricts the accepted signing algorithms.
func WithAlgorithms(algs ...string) VerifierOption {
	return func(o *verifierOptions) {
		if len(algs) > 0 {
			o.algorithms = append([]string(nil), algs...)
		}
	}
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) VerifierOption {
	return func(o *verifierOptions) {
		o.leeway = d
	}
}

// WithTimeFunc overrides the clock used for expiry checks.
func WithTimeFunc(now func() time.Time) VerifierOption {
	return func(o *verifierOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Verifier validates bearer tokens issued by a single issuer for a single audience.
type Verifier struct {
	keys       KeyProvider
	algorithms []string
	parser     *jwt.Parser
}

// NewVerifier constructs a verifier that resolves keys through keys.
func NewVerifier(keys KeyProvider, issuer, audience string, opts ...VerifierOption) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("verifier requires a key provider")
	}
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if audience == "" {
		return nil, errors.New("audience is required")
	}

	vOpts := verifierOptions{
		algorithms: DefaultAlgorithms,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&vOpts)
	}

	for _, alg := range vOpts.algorithms {
		if alg == "none" || strings.HasPrefix(alg, "HS") {
			return nil, fmt.Errorf("algorithm %s is not asymmetric", alg)
		}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(vOpts.algorithms),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(vOpts.leeway),
		jwt.WithTimeFunc(vOpts.now),
	)

	return &Verifier{
		keys:       keys,
		algorithms: vOpts.algorithms,
		parser:     parser,
	}, nil
}

// NewVerifierFromConfig wires a verifier and its key set cache from cfg.
func NewVerifierFromConfig(cfg config.AuthConfig) (*Verifier, *KeySet, error) {
	keys := NewKeySetFromConfig(cfg)
	v, err := NewVerifier(keys, cfg.Issuer, cfg.Audience,
		WithAlgorithms(cfg.Algorithms...),
		WithLeeway(cfg.Leeway),
	)
	if err != nil {
		return nil, nil, err
	}
	return v, keys, nil
}

// Verify checks, in order: header structure, key id, signature, expiry,
// then audience and issuer. The returned claims are those of the token.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	unverified, _, err := v.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, newError(KindInvalidHeader, err)
	}

	alg, _ := unverified.Header["alg"].(string)
	kid, _ := unverified.Header["kid"].(string)
	if alg == "" {
		return nil, newError(KindInvalidHeader, errors.New("token header has no alg"))
	}
	if kid == "" {
		return nil, newError(KindInvalidHeader, errors.New("token header has no kid"))
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, newError(KindKeySetUnavailable, err)
	}
	if key.Algorithm != "" && key.Algorithm != alg {
		return nil, newError(KindInvalidSignature, fmt.Errorf("key %s is for %s, token uses %s", kid, key.Algorithm, alg))
	}

	claims := jwt.MapClaims{}
	_, err = v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	return newClaims(claims), nil
}

func classifyParseError(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindTokenExpired, err)
	default:
		return newError(KindInvalidClaims, err)
	}
}

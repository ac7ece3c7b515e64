package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/auth"
)

// TokenVerifier validates a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// ErrorResponder writes the response for a rejected request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// AuthzDependencies provides the collaborators needed for authorization decisions.
type AuthzDependencies struct {
	Verifier TokenVerifier
	OnError  ErrorResponder
}

// Authorizer guards individual routes with a required permission.
type Authorizer struct {
	verifier TokenVerifier
	onError  ErrorResponder
}

// NewAuthorizer constructs the authorizer. OnError is required so rejected
// requests are always answered in the API's error envelope.
func NewAuthorizer(deps AuthzDependencies) (*Authorizer, error) {
	if deps.Verifier == nil {
		return nil, errors.New("authz middleware requires a token verifier")
	}
	if deps.OnError == nil {
		return nil, errors.New("authz middleware requires an error responder")
	}
	return &Authorizer{verifier: deps.Verifier, onError: deps.OnError}, nil
}

// Require returns a chi middleware that admits the request only when it
// carries a valid bearer token granting permission. Verified claims are
// stored on the request context (see auth.ClaimsFromContext).
func (a *Authorizer) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, err := auth.BearerToken(r)
			if err != nil {
				a.reject(w, r, permission, err)
				return
			}

			claims, err := a.verifier.Verify(ctx, raw)
			if err != nil {
				a.reject(w, r, permission, err)
				return
			}

			if err := auth.CheckPermission(claims, permission); err != nil {
				a.reject(w, r, permission, err)
				return
			}

			slog.DebugContext(ctx, "request authorized",
				"method", r.Method,
				"path", r.URL.Path,
				"subject", claims.Subject,
				"permission", permission,
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(ctx, claims)))
		})
	}
}

func (a *Authorizer) reject(w http.ResponseWriter, r *http.Request, permission string, err error) {
	slog.DebugContext(r.Context(), "request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"permission", permission,
		"error", err,
	)
	a.onError(w, r, err)
}

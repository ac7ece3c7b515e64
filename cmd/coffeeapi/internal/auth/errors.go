package auth

import "net/http"

// Kind classifies an authentication or authorization failure.
type Kind int

const (
	KindAuthHeaderMissing Kind = iota + 1
	KindInvalidHeader
	KindInvalidKeyID
	KindInvalidSignature
	KindTokenExpired
	KindInvalidClaims
	KindKeySetUnavailable
	KindPermissionsClaimMissing
	KindPermissionDenied
)

var kindCodes = map[Kind]string{
	KindAuthHeaderMissing:       "authorization_header_missing",
	KindInvalidHeader:           "invalid_header",
	KindInvalidKeyID:            "invalid_key_id",
	KindInvalidSignature:        "invalid_signature",
	KindTokenExpired:            "token_expired",
	KindInvalidClaims:           "invalid_claims",
	KindKeySetUnavailable:       "key_set_unavailable",
	KindPermissionsClaimMissing: "permissions_claim_missing",
	KindPermissionDenied:        "unauthorized",
}

// Code is the short, client-visible identifier for the failure.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return "unauthorized"
}

func (k Kind) String() string { return k.Code() }

// Error is returned by the verifier and the permission gate. Err keeps the
// underlying cause for logs; it is never shown to clients.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Code() + ": " + e.Err.Error()
	}
	return e.Kind.Code()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrTokenExpired)
// holds regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code returns the short code of the failure kind.
func (e *Error) Code() string { return e.Kind.Code() }

// StatusCode is the HTTP status for every auth failure.
func (e *Error) StatusCode() int { return http.StatusUnauthorized }

var (
	ErrAuthHeaderMissing       = &Error{Kind: KindAuthHeaderMissing}
	ErrInvalidHeader           = &Error{Kind: KindInvalidHeader}
	ErrInvalidKeyID            = &Error{Kind: KindInvalidKeyID}
	ErrInvalidSignature        = &Error{Kind: KindInvalidSignature}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrInvalidClaims           = &Error{Kind: KindInvalidClaims}
	ErrKeySetUnavailable       = &Error{Kind: KindKeySetUnavailable}
	ErrPermissionsClaimMissing = &Error{Kind: KindPermissionsClaimMissing}
	ErrPermissionDenied        = &Error{Kind: KindPermissionDenied}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

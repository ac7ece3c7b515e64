package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// PermissionsClaim is the claim holding the caller's permission strings.
const PermissionsClaim = "permissions"

// Claims is the verified payload of a bearer token. It lives for a single
// request and is never cached.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time

	raw jwt.MapClaims
}

func newClaims(raw jwt.MapClaims) *Claims {
	c := &Claims{raw: raw}
	c.Issuer, _ = raw.GetIssuer()
	c.Subject, _ = raw.GetSubject()
	if aud, err := raw.GetAudience(); err == nil {
		c.Audience = aud
	}
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}

// Raw returns the decoded claims exactly as they appeared in the token.
func (c *Claims) Raw() map[string]any {
	return c.raw
}

// Permissions decodes the permissions claim. ok is false when the claim is
// absent, null, or not a list of strings.
func (c *Claims) Permissions() (perms []string, ok bool) {
	value, present := c.raw[PermissionsClaim]
	if !present || value == nil {
		return nil, false
	}

	if err := mapstructure.Decode(value, &perms); err != nil {
		return nil, false
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, true
}

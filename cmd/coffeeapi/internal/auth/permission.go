package auth

import (
	"fmt"
	"slices"
)

// CheckPermission is the permission gate. It fails with
// ErrPermissionsClaimMissing when the token carries no usable permissions
// claim and with ErrPermissionDenied when permission is not in the set.
// Permission strings are compared verbatim.
func CheckPermission(claims *Claims, permission string) error {
	if claims == nil {
		return newError(KindPermissionsClaimMissing, fmt.Errorf("no claims"))
	}

	perms, ok := claims.Permissions()
	if !ok {
		return newError(KindPermissionsClaimMissing, fmt.Errorf("token has no %s claim", PermissionsClaim))
	}

	if !slices.Contains(perms, permission) {
		return newError(KindPermissionDenied, fmt.Errorf("permission %q not granted", permission))
	}

	return nil
}

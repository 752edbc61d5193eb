package bridge

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenInfo is what can be read from an access token without verifying it.
// Verification belongs to the remote service.
type tokenInfo struct {
	Subject string
	Expires time.Time
}

// inspectToken extracts the user principal and expiry from a JWT access
// token. Opaque tokens yield the zero value.
func inspectToken(raw string) tokenInfo {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return tokenInfo{}
	}

	var info tokenInfo
	for _, key := range []string{"upn", "unique_name", "preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			info.Subject = v
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.Expires = exp.Time
	}
	return info
}

func (t tokenInfo) expired(now time.Time) bool {
	return !t.Expires.IsZero() && now.After(t.Expires)
}

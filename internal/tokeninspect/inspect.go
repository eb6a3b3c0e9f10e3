// Package tokeninspect decodes (without verifying) the bearer token
// used to authenticate to the upstream trade provider, purely for
// observability: if the token happens to be a JWT, its expiry claim is
// logged once at startup, before the initial connection. Grounded on
// adred-codev-ws_poc's go-server/internal/auth/jwt.go, stripped down
// from full HS256 issuance/verification (this service is a client, it
// never mints or validates the provider's token) to unverified claim
// parsing.
package tokeninspect

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Result describes what was learned about a bearer token.
type Result struct {
	IsJWT     bool
	ExpiresAt time.Time
	Expired   bool
	ExpiresSoon bool
}

// soonThreshold is how far ahead of expiry we start warning.
const soonThreshold = 5 * time.Minute

// Inspect parses token as a JWT without verifying its signature —
// upstream trade providers commonly issue opaque API keys rather than
// JWTs, so a parse failure is expected, not an error condition.
func Inspect(token string) Result {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return Result{}
	}

	expUnix, err := claims.GetExpirationTime()
	if err != nil || expUnix == nil {
		return Result{IsJWT: true}
	}

	now := time.Now()
	return Result{
		IsJWT:       true,
		ExpiresAt:   expUnix.Time,
		Expired:     now.After(expUnix.Time),
		ExpiresSoon: !now.After(expUnix.Time) && expUnix.Time.Sub(now) < soonThreshold,
	}
}

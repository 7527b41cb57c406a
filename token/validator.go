package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parser decodes claims without validating them; expiry policy is applied by
// Valid so callers control the reference clock.
var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Valid reports whether accessToken carries an exp claim strictly in the
// future relative to now.
//
// Any structural failure — wrong segment count, undecodable base64url,
// invalid JSON, missing or non-numeric exp — yields false. Valid never
// returns an error and never panics: a token the client cannot read is a
// token the client cannot use.
func Valid(accessToken string, now time.Time) bool {
	exp, ok := ExpiresAt(accessToken)
	return ok && exp.After(now)
}

// ExpiresAt decodes the exp claim of accessToken without signature
// verification. The second return value is false when the token is
// malformed or carries no usable exp claim.
func ExpiresAt(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// TimeToExpiry returns the remaining lifetime of accessToken relative to
// now. Malformed tokens and tokens already past exp report zero remaining
// lifetime.
func TimeToExpiry(accessToken string, now time.Time) time.Duration {
	exp, ok := ExpiresAt(accessToken)
	if !ok {
		return 0
	}
	d := exp.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

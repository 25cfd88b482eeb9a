package auth

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Validator authenticates requests locally. It holds only the codec and a
// clock; it never consults a store or the network.
type Validator struct {
	codec *Codec
	now   func() time.Time
}

// NewValidator uses time.Now when clock is nil.
func NewValidator(codec *Codec, clock func() time.Time) *Validator {
	if clock == nil {
		clock = time.Now
	}
	return &Validator{codec: codec, now: clock}
}

// Validate returns the principal for a valid token. Every failure kind
// collapses to false.
func (v *Validator) Validate(token string) (Principal, bool) {
	claims, err := v.codec.Verify(token, v.now())
	if err != nil {
		return Principal{}, false
	}
	return claims.Principal(), true
}

// ValidateHeader validates the token carried by an Authorization header value.
// A missing or malformed header is the same as an invalid token.
func (v *Validator) ValidateHeader(header string) (Principal, bool) {
	token, ok := BearerToken(header)
	if !ok {
		return Principal{}, false
	}
	return v.Validate(token)
}

// BearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

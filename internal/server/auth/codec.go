// Package auth issues and verifies signed access tokens and carries the
// resulting principal through request contexts. Verification is a pure
// function of the token, the key material and the clock.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed access token payload.
type Claims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Principal builds the authenticated identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, UserName: c.Subject, Roles: slices.Clone(c.Roles)}
}

type CodecConfig struct {
	AccessTTL time.Duration
	Issuer    string
}

// Codec signs and verifies access tokens with one fixed key and algorithm.
type Codec struct {
	keys   KeyMaterial
	cfg    CodecConfig
	method jwt.SigningMethod
}

func NewCodec(keys KeyMaterial, cfg CodecConfig) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}

	var method jwt.SigningMethod
	switch keys.Method {
	case MethodHS256:
		if len(keys.Secret) < MinSecretSize {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretSize)
		}
		method = jwt.SigningMethodHS256
	case MethodEd25519:
		if keys.PublicKey == nil {
			return nil, errors.New("ed25519 requires a public key")
		}
		method = jwt.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("unsupported signing method %q", keys.Method)
	}

	return &Codec{keys: keys, cfg: cfg, method: method}, nil
}

// AccessTTL is the lifetime of every issued access token.
func (c *Codec) AccessTTL() time.Duration {
	return c.cfg.AccessTTL
}

// Issue signs a token for p that expires AccessTTL after now. Identical
// inputs produce identical tokens.
func (c *Codec) Issue(p Principal, now time.Time) (string, error) {
	if !c.keys.CanSign() {
		return "", errors.New("key material cannot sign")
	}

	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}

	// exp is whole seconds on the wire; round up so the token lives at least
	// AccessTTL.
	exp := now.Add(c.cfg.AccessTTL)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}

	claims := Claims{
		UserID: p.UserID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserName,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.signKey())
}

// Verify checks the signature and expiry of token as of now. A token is
// expired once now reaches its exp claim. Errors are one of
// common.ErrTokenMalformed, common.ErrTokenSignatureInvalid or
// common.ErrTokenExpired.
func (c *Codec) Verify(token string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		// rejects non-canonical base64, e.g. altered padding bits in the signature
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if c.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.verifyKey(), nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.UserID == "" {
		return nil, common.ErrTokenMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrTokenSignatureInvalid
	default:
		return common.ErrTokenMalformed
	}
}

func (c *Codec) signKey() any {
	if c.keys.Method == MethodHS256 {
		return c.keys.Secret
	}
	return c.keys.PrivateKey
}

func (c *Codec) verifyKey() any {
	if c.keys.Method == MethodHS256 {
		return c.keys.Secret
	}
	return c.keys.PublicKey
}

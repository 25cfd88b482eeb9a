package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	issuedAt   = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	alice      = Principal{UserID: "u-1", UserName: "alice", Roles: []string{"ROLE_USER"}}
)

func newHSCodec(t *testing.T) *Codec {
	t.Helper()
	keys, err := NewHS256Keys(testSecret)
	require.NoError(t, err)
	c, err := NewCodec(keys, CodecConfig{AccessTTL: 15 * time.Minute, Issuer: "tokenkeeper"})
	require.NoError(t, err)
	return c
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newHSCodec(t)

	tok, err := c.Issue(alice, issuedAt)
	require.NoError(t, err)

	claims, err := c.Verify(tok, issuedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, alice, claims.Principal())
	assert.Equal(t, "tokenkeeper", claims.Issuer)
	assert.True(t, issuedAt.Add(15*time.Minute).Equal(claims.ExpiresAt.Time))
}

func TestCodec_IssueIsDeterministic(t *testing.T) {
	c := newHSCodec(t)

	a, err := c.Issue(alice, issuedAt)
	require.NoError(t, err)
	b, err := c.Issue(alice, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	c := newHSCodec(t)

	tok, err := c.Issue(alice, issuedAt)
	require.NoError(t, err)

	exp := issuedAt.Add(c.AccessTTL())

	_, err = c.Verify(tok, exp.Add(-time.Second))
	assert.NoError(t, err)

	_, err = c.Verify(tok, exp)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = c.Verify(tok, exp.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestCodec_SignatureBitFlip(t *testing.T) {
	hs := newHSCodec(t)

	pub, priv := newEdKeys(t)
	keys, err := NewEd25519Keys(priv, pub)
	require.NoError(t, err)
	ed, err := NewCodec(keys, CodecConfig{AccessTTL: 15 * time.Minute})
	require.NoError(t, err)

	for name, c := range map[string]*Codec{"hs256": hs, "ed25519": ed} {
		t.Run(name, func(t *testing.T) {
			tok, err := c.Issue(alice, issuedAt)
			require.NoError(t, err)

			parts := strings.Split(tok, ".")
			require.Len(t, parts, 3)
			prefix := parts[0] + "." + parts[1] + "."

			for i := 0; i < len(parts[2]); i++ {
				for b := 0; b < 8; b++ {
					sig := []byte(parts[2])
					sig[i] ^= 1 << b

					_, err := c.Verify(prefix+string(sig), issuedAt)
					require.Error(t, err, "char %d bit %d", i, b)
					if !errors.Is(err, common.ErrTokenSignatureInvalid) {
						assert.ErrorIs(t, err, common.ErrTokenMalformed, "char %d bit %d", i, b)
					}
				}
			}
		})
	}
}

func TestCodec_SubSecondIssueKeepsFullTTL(t *testing.T) {
	c := newHSCodec(t)

	at := issuedAt.Add(900 * time.Millisecond)
	tok, err := c.Issue(alice, at)
	require.NoError(t, err)

	claims, err := c.Verify(tok, at.Add(c.AccessTTL()-500*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, issuedAt.Add(c.AccessTTL()+time.Second).Equal(claims.ExpiresAt.Time))

	_, err = c.Verify(tok, issuedAt.Add(c.AccessTTL()+time.Second))
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestCodec_WrongKey(t *testing.T) {
	c := newHSCodec(t)
	tok, err := c.Issue(alice, issuedAt)
	require.NoError(t, err)

	other, err := NewHS256Keys([]byte("another-secret-of-enough-length"))
	require.NoError(t, err)
	verifier, err := NewCodec(other, CodecConfig{AccessTTL: time.Minute, Issuer: "tokenkeeper"})
	require.NoError(t, err)

	_, err = verifier.Verify(tok, issuedAt)
	assert.ErrorIs(t, err, common.ErrTokenSignatureInvalid)
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := newHSCodec(t)

	claims := Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "tokenkeeper",
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(none, issuedAt)
	assert.ErrorIs(t, err, common.ErrTokenSignatureInvalid)
}

func TestCodec_Malformed(t *testing.T) {
	c := newHSCodec(t)

	for _, tok := range []string{"", "abc", "a.b.c", "....."} {
		_, err := c.Verify(tok, issuedAt)
		assert.ErrorIs(t, err, common.ErrTokenMalformed, "token %q", tok)
	}
}

func TestCodec_MissingExpIsMalformed(t *testing.T) {
	c := newHSCodec(t)

	claims := Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "tokenkeeper"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = c.Verify(tok, issuedAt)
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}

func TestCodec_Ed25519(t *testing.T) {
	pub, priv := newEdKeys(t)

	signKeys, err := NewEd25519Keys(priv, nil)
	require.NoError(t, err)
	issuer, err := NewCodec(signKeys, CodecConfig{AccessTTL: time.Minute})
	require.NoError(t, err)

	tok, err := issuer.Issue(alice, issuedAt)
	require.NoError(t, err)

	// a consuming service only holds the public key
	verifyKeys, err := NewEd25519Keys(nil, pub)
	require.NoError(t, err)
	assert.False(t, verifyKeys.CanSign())

	verifier, err := NewCodec(verifyKeys, CodecConfig{AccessTTL: time.Minute})
	require.NoError(t, err)

	claims, err := verifier.Verify(tok, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = verifier.Issue(alice, issuedAt)
	assert.Error(t, err)
}

func TestNewCodec_Validation(t *testing.T) {
	keys, err := NewHS256Keys(testSecret)
	require.NoError(t, err)

	_, err = NewCodec(keys, CodecConfig{})
	assert.Error(t, err)

	_, err = NewCodec(KeyMaterial{Method: "rs256"}, CodecConfig{AccessTTL: time.Minute})
	assert.Error(t, err)

	_, err = NewHS256Keys([]byte("short"))
	assert.Error(t, err)
}

package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm every issuer and verifier agrees on.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// MinSecretSize is the shortest HS256 secret accepted.
const MinSecretSize = 16

// KeyMaterial is loaded once at process start and never changes while the
// process runs. Changing it invalidates every outstanding access token.
type KeyMaterial struct {
	Method     SigningMethod
	Secret     []byte
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// CanSign reports whether the material allows issuing tokens. Ed25519
// verifiers may hold only the public key.
func (k KeyMaterial) CanSign() bool {
	switch k.Method {
	case MethodHS256:
		return len(k.Secret) > 0
	case MethodEd25519:
		return len(k.PrivateKey) > 0
	}
	return false
}

func NewHS256Keys(secret []byte) (KeyMaterial, error) {
	if len(secret) < MinSecretSize {
		return KeyMaterial{}, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretSize)
	}
	return KeyMaterial{Method: MethodHS256, Secret: secret}, nil
}

// NewEd25519Keys accepts raw or PEM encoded keys. Either key may be empty;
// when only the private key is given the public key is derived from it.
func NewEd25519Keys(private, public []byte) (KeyMaterial, error) {
	k := KeyMaterial{Method: MethodEd25519}

	if len(private) > 0 {
		priv, err := parseEdPrivateKey(private)
		if err != nil {
			return KeyMaterial{}, err
		}
		k.PrivateKey = priv
		k.PublicKey = priv.Public().(ed25519.PublicKey)
	}

	if len(public) > 0 {
		pub, err := parseEdPublicKey(public)
		if err != nil {
			return KeyMaterial{}, err
		}
		if k.PublicKey != nil && !k.PublicKey.Equal(pub) {
			return KeyMaterial{}, errors.New("ed25519 public key does not match private key")
		}
		k.PublicKey = pub
	}

	if k.PublicKey == nil {
		return KeyMaterial{}, errors.New("ed25519 requires a private or public key")
	}
	return k, nil
}

// LoadKeyMaterial builds key material from configuration values. Key files
// are read from disk; secret is used as is.
func LoadKeyMaterial(method, secret, privateKeyFile, publicKeyFile string) (KeyMaterial, error) {
	switch SigningMethod(strings.ToLower(method)) {
	case MethodHS256:
		return NewHS256Keys([]byte(secret))
	case MethodEd25519:
		private, err := readKeyFile(privateKeyFile)
		if err != nil {
			return KeyMaterial{}, err
		}
		public, err := readKeyFile(publicKeyFile)
		if err != nil {
			return KeyMaterial{}, err
		}
		return NewEd25519Keys(private, public)
	default:
		return KeyMaterial{}, fmt.Errorf("unsupported signing method %q", method)
	}
}

func readKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading key file: %w", err)
	}
	return b, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

package common

const (
	// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
	// carries the access token on inbound requests.
	AuthorizationHeaderName = "authorization"

	// BearerScheme prefixes the access token in the authorization value.
	BearerScheme = "Bearer"

	// TokenTypeBearer is returned to clients alongside issued tokens.
	TokenTypeBearer = "Bearer"

	// DefaultRole is granted to every newly registered user.
	DefaultRole = "ROLE_USER"

	// RefreshTokenSize is the number of random bytes in a refresh token
	// before hex encoding.
	RefreshTokenSize = 32
)

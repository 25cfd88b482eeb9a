package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var flagNames = []string{
	"-a", "-h", "-d", "-m", "-s", "-priv", "-pub", "-iss",
	"-t", "-r", "-sweep", "-redis", "-attempts", "-cooldown", "-l",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string          gRPC bind address (e.g. ":50051")
//	-h string          HTTP bind address, empty disables the HTTP API
//	-d string          PostgreSQL DSN or "memory"
//	-m string          signing method: hs256 | ed25519
//	-s string          HMAC secret key
//	-priv / -pub       Ed25519 key files (PEM or raw)
//	-iss string        token issuer
//	-t / -r duration   access / refresh token validity (e.g. 15m, 168h)
//	-sweep duration    expired refresh token sweep interval
//	-redis string      Redis address for login throttling
//	-attempts int      failed logins allowed per cooldown window
//	-cooldown duration throttle window
//	-l string          log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address")
	fs.StringVar(&config.EndpointAddrHTTP, "h", config.EndpointAddrHTTP, "HTTP address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SigningMethod, "m", config.SigningMethod, "signing method")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PrivateKeyFile, "priv", config.PrivateKeyFile, "ed25519 private key file")
	fs.StringVar(&config.PublicKeyFile, "pub", config.PublicKeyFile, "ed25519 public key file")
	fs.StringVar(&config.Issuer, "iss", config.Issuer, "token issuer")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "expired token sweep interval")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.MaxLoginAttempts, "attempts", config.MaxLoginAttempts, "max failed logins per window")
	fs.DurationVar(&config.LoginCooldown, "cooldown", config.LoginCooldown, "login throttle window")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}

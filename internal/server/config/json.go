package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Absent fields keep the value already in Config.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SigningMethod                *string         `json:"signing_method"`
	SecretKey                    *string         `json:"secret_key"`
	PrivateKeyFile               *string         `json:"private_key_file"`
	PublicKeyFile                *string         `json:"public_key_file"`
	Issuer                       *string         `json:"issuer"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	SweepInterval                *timex.Duration `json:"sweep_interval"`
	RedisAddr                    *string         `json:"redis_addr"`
	MaxLoginAttempts             *int            `json:"max_login_attempts"`
	LoginCooldown                *timex.Duration `json:"login_cooldown"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SigningMethod, c.SigningMethod)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PrivateKeyFile, c.PrivateKeyFile)
	setString(&config.PublicKeyFile, c.PublicKeyFile)
	setString(&config.Issuer, c.Issuer)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.LoginCooldown != nil {
		config.LoginCooldown = c.LoginCooldown.Duration
	}
	if c.MaxLoginAttempts != nil {
		config.MaxLoginAttempts = *c.MaxLoginAttempts
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

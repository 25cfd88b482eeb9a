package config

import "github.com/caarlos0/env/v11"

const envPrefix = "TOKENKEEPER_"

// parseEnv overlays TOKENKEEPER_* variables onto config. Unset variables
// leave the current value untouched. A nil environment reads the process
// environment.
func parseEnv(config *Config, environment map[string]string) error {
	return env.ParseWithOptions(config, env.Options{
		Prefix:      envPrefix,
		Environment: environment,
	})
}

package config

import "time"

// Config holds runtime settings for the tokenkeeper CLI.
//
//   - ServerEndpointAddr: host:port of the AuthService gRPC endpoint.
//   - RequestTimeout: deadline applied to every call made from the REPL.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with local development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
}

// LoadConfig applies defaults, then JSON (if -c/-config is given), then
// flags. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

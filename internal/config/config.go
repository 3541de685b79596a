// Package config loads the engine's runtime configuration from the
// environment via envconfig, a single typed struct with fail-fast
// behavior on a missing required value.
package config

import (
	"fmt"
	"log"

	"github.com/kelseyhightower/envconfig"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Port string `envconfig:"PORT" default:"5339"`

	BTCRPCHost string `envconfig:"BTC_RPC_HOST" default:"localhost:8332"`
	BTCRPCUser string `envconfig:"BTC_RPC_USER" required:"true"`
	BTCRPCPass string `envconfig:"BTC_RPC_PASS" required:"true"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	ZMQRawTxEndpoint    string `envconfig:"ZMQ_RAWTX_ENDPOINT" default:"tcp://127.0.0.1:28332"`
	ZMQRawBlockEndpoint string `envconfig:"ZMQ_RAWBLOCK_ENDPOINT" default:"tcp://127.0.0.1:28333"`

	RollingWindowSeconds float64 `envconfig:"ROLLING_WINDOW_SECONDS" default:"10800"`
	BaselineWindowBlocks int     `envconfig:"BASELINE_WINDOW_BLOCKS" default:"144"`

	GCIntervalSeconds      float64 `envconfig:"GC_INTERVAL_SECONDS" default:"60"`
	BroadcastIntervalSeconds float64 `envconfig:"BROADCAST_INTERVAL_SECONDS" default:"0.5"`

	APIAuthToken             string `envconfig:"API_AUTH_TOKEN"`
	ConnectionAttemptsPerMin int    `envconfig:"CONNECTION_ATTEMPTS_PER_MINUTE" default:"5"`

	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads the configuration from the environment. It does not exit the
// process on a missing required field, so callers can decide whether a
// missing BTC_RPC_USER/PASS is fatal (the engine binary) or tolerable (a
// unit test constructing a partial Config by hand).
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load, but exits the process on failure, matching the engine
// binary's entrypoint behavior.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	return cfg
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Ledger LedgerConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"9000"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
}

// LedgerConfig points the engine at the on-chain identity registry. There are
// no usable defaults for these: a process that cannot reach the registry
// cannot authenticate anyone, so Load fails fast when they are missing.
type LedgerConfig struct {
	RPCURL             string        `envconfig:"LEDGER_RPC_URL" default:""`
	ContractAddress    string        `envconfig:"LEDGER_CONTRACT_ADDRESS" default:""`
	OperatorPrivateKey string        `envconfig:"LEDGER_OPERATOR_PRIVATE_KEY" default:""`
	TxTimeout          time.Duration `envconfig:"LEDGER_TX_TIMEOUT" default:"2m"`
}

type AuthConfig struct {
	WalletOnlyWindow  time.Duration `envconfig:"AUTH_WALLET_ONLY_WINDOW" default:"350s"`
	FullReloginWindow time.Duration `envconfig:"AUTH_FULL_RELOGIN_WINDOW" default:"900s"`
	ChallengeTTL      time.Duration `envconfig:"AUTH_CHALLENGE_TTL" default:"5m"`
	SessionTokenTTL   time.Duration `envconfig:"AUTH_SESSION_TOKEN_TTL" default:"1h"`
	SigningKey        string        `envconfig:"AUTH_SIGNING_KEY" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Ledger.RPCURL == "" {
		return fmt.Errorf("LEDGER_RPC_URL is required")
	}
	if c.Ledger.ContractAddress == "" {
		return fmt.Errorf("LEDGER_CONTRACT_ADDRESS is required")
	}
	if c.Ledger.OperatorPrivateKey == "" {
		return fmt.Errorf("LEDGER_OPERATOR_PRIVATE_KEY is required")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/OKaluzny/wallet-init/internal/hdkey"
	"github.com/OKaluzny/wallet-init/internal/seal"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

// Config holds all configurable parameters for wallet initialization.
type Config struct {
	// Deployment
	Mode    string `envconfig:"MODE" default:"production"`
	Network string `envconfig:"NETWORK" default:"mainnet"`
	Curve   string `envconfig:"CURVE" default:"secp256k1"`

	// Protection key: either a 32-byte hex key, or a passphrase and salt
	// stretched with scrypt.
	ProtectionKey        string `envconfig:"PROTECTION_KEY"`
	ProtectionPassphrase string `envconfig:"PROTECTION_PASSPHRASE"`
	ProtectionSalt       string `envconfig:"PROTECTION_SALT"`

	// Host side
	DBPath          string        `envconfig:"DB_PATH" default:"wallets.db"`
	InitMaxAttempts int           `envconfig:"INIT_MAX_ATTEMPTS" default:"3"`
	RetryInterval   time.Duration `envconfig:"INIT_RETRY_INTERVAL" default:"500ms"`
	ContextTimeout  time.Duration `envconfig:"CONTEXT_TIMEOUT" default:"15s"`
	MetricsTextfile string        `envconfig:"METRICS_TEXTFILE"`
}

const envPrefix = "WALLET"

var ErrNoProtectionKey = errors.New("protection key or passphrase must be set")

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Mode:            "production",
		Network:         string(models.NetworkMainnet),
		Curve:           hdkey.CurveSecp256k1,
		DBPath:          "wallets.db",
		InitMaxAttempts: 3,
		RetryInterval:   500 * time.Millisecond,
		ContextTimeout:  15 * time.Second,
	}
}

// FromEnv returns a Config populated from WALLET_* environment variables,
// falling back to defaults for unset values.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the values can build a working initializer.
func (c Config) Validate() error {
	if _, err := c.DeploymentMode(); err != nil {
		return err
	}
	if _, err := c.ParsedNetwork(); err != nil {
		return err
	}
	if c.Curve != hdkey.CurveSecp256k1 {
		return fmt.Errorf("%w: %s", hdkey.ErrUnsupportedCurve, c.Curve)
	}
	if c.ProtectionKey == "" && c.ProtectionPassphrase == "" {
		return ErrNoProtectionKey
	}
	if c.InitMaxAttempts < 1 {
		return fmt.Errorf("init max attempts must be positive, got %d", c.InitMaxAttempts)
	}
	if c.ContextTimeout <= 0 {
		return fmt.Errorf("context timeout must be positive, got %s", c.ContextTimeout)
	}
	return nil
}

func (c Config) DeploymentMode() (models.DeploymentMode, error) {
	return models.ParseDeploymentMode(c.Mode)
}

func (c Config) ParsedNetwork() (models.Network, error) {
	return models.ParseNetwork(c.Network)
}

// ProtectionKeyBytes resolves the sealing key. A hex key wins over a
// passphrase.
func (c Config) ProtectionKeyBytes() ([]byte, error) {
	switch {
	case c.ProtectionKey != "":
		return seal.KeyFromHex(c.ProtectionKey)
	case c.ProtectionPassphrase != "":
		return seal.KeyFromPassphrase([]byte(c.ProtectionPassphrase), []byte(c.ProtectionSalt))
	default:
		return nil, ErrNoProtectionKey
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"gopkg.in/yaml.v3"
)

// Environment variables understood by FromEnv. Every variable overrides the
// corresponding file value; unset variables leave it untouched.
const (
	EnvMode            = "STARKDEV_MODE"
	EnvNetworkName     = "STARKDEV_NETWORK"
	EnvRPCURL          = "STARKDEV_RPC_URL"
	EnvDevnetURL       = "STARKDEV_DEVNET_URL"
	EnvChainID         = "STARKDEV_CHAIN_ID"
	EnvFeeToken        = "STARKDEV_FEE_TOKEN"
	EnvAccountAddress  = "STARKDEV_ACCOUNT_ADDRESS"
	EnvPrivateKey      = "STARKDEV_PRIVATE_KEY"
	EnvPublicKey       = "STARKDEV_PUBLIC_KEY"
	EnvCairoVersion    = "STARKDEV_CAIRO_VERSION"
	EnvCompilerVersion = "STARKDEV_COMPILER_VERSION"
	EnvTimeout         = "STARKDEV_TIMEOUT"
	EnvRetryCount      = "STARKDEV_RETRY_COUNT"
	EnvRetryDelay      = "STARKDEV_RETRY_DELAY"
)

// ETHFeeToken is the canonical ETH fee token address predeployed on every
// Starknet network, devnet included.
const ETHFeeToken = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Default returns the configuration of a local starknet-devnet instance.
func Default() Config {
	return Config{
		Network: Network{
			Name:      "devnet",
			RPCURL:    "http://localhost:5050/rpc",
			DevnetURL: "http://localhost:5050",
			ChainID:   "SN_SEPOLIA",
			FeeToken:  ETHFeeToken,
		},
		Account: Account{
			CairoVersion: 2,
		},
		Options: Options{
			Timeout:    Duration(60 * time.Second),
			RetryCount: 3,
			RetryDelay: Duration(500 * time.Millisecond),
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies STARKDEV_* environment overrides to cfg.
func FromEnv(cfg Config) (Config, error) {
	setString(&cfg.Network.Name, EnvNetworkName)
	setString(&cfg.Network.RPCURL, EnvRPCURL)
	setString(&cfg.Network.DevnetURL, EnvDevnetURL)
	setString(&cfg.Network.ChainID, EnvChainID)
	setString(&cfg.Network.FeeToken, EnvFeeToken)
	setString(&cfg.Account.Address, EnvAccountAddress)
	setString(&cfg.Account.PrivateKey, EnvPrivateKey)
	setString(&cfg.Account.PublicKey, EnvPublicKey)
	setString(&cfg.Options.CompilerVersion, EnvCompilerVersion)

	if raw, ok := lookup(EnvCairoVersion); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvCairoVersion, err)
		}
		cfg.Account.CairoVersion = v
	}
	if raw, ok := lookup(EnvRetryCount); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvRetryCount, err)
		}
		cfg.Options.RetryCount = v
	}
	if raw, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvTimeout, err)
		}
		cfg.Options.Timeout = Duration(d)
	}
	if raw, ok := lookup(EnvRetryDelay); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvRetryDelay, err)
		}
		cfg.Options.RetryDelay = Duration(d)
	}
	return cfg, nil
}

// Resolve loads the optional file at path (empty path skips the file layer),
// applies environment overrides and validates the result.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	cfg, err := FromEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field presence and parseability. Account credentials are
// optional as a block, but must be complete and well-formed when present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Network.RPCURL) == "" {
		return fmt.Errorf("%w: network.rpc_url is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.Network.RPCURL); err != nil {
		return fmt.Errorf("%w: network.rpc_url: %v", ErrInvalidConfig, err)
	}
	if c.Network.DevnetURL != "" {
		if _, err := url.Parse(c.Network.DevnetURL); err != nil {
			return fmt.Errorf("%w: network.devnet_url: %v", ErrInvalidConfig, err)
		}
	}
	if strings.TrimSpace(c.Network.ChainID) == "" {
		return fmt.Errorf("%w: network.chain_id is required", ErrInvalidConfig)
	}
	if err := validateFelt("network.fee_token", c.Network.FeeToken); err != nil {
		return err
	}

	if c.Account.HasCredentials() {
		if err := validateFelt("account.address", c.Account.Address); err != nil {
			return err
		}
		if err := validateFelt("account.private_key", c.Account.PrivateKey); err != nil {
			return err
		}
		if err := validateFelt("account.public_key", c.Account.PublicKey); err != nil {
			return err
		}
		switch c.Account.CairoVersion {
		case 0, 1, 2:
		default:
			return fmt.Errorf("%w: account.cairo_version must be 0, 1 or 2", ErrInvalidConfig)
		}
	}

	if c.Options.RetryCount < 0 {
		return fmt.Errorf("%w: options.retry_count must be >= 0", ErrInvalidConfig)
	}
	if c.Options.Timeout < 0 {
		return fmt.Errorf("%w: options.timeout must be >= 0", ErrInvalidConfig)
	}
	if c.Options.RetryDelay < 0 {
		return fmt.Errorf("%w: options.retry_delay must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// HasCredentials reports whether any account field is populated.
func (a Account) HasCredentials() bool {
	return strings.TrimSpace(a.Address) != "" ||
		strings.TrimSpace(a.PrivateKey) != "" ||
		strings.TrimSpace(a.PublicKey) != ""
}

func validateFelt(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
	}
	if _, err := new(felt.Felt).SetString(value); err != nil {
		return fmt.Errorf("%w: %s is not a field element: %v", ErrInvalidConfig, field, err)
	}
	return nil
}

func setString(dst *string, env string) {
	if raw, ok := lookup(env); ok {
		*dst = raw
	}
}

func lookup(env string) (string, bool) {
	raw, ok := os.LookupEnv(env)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

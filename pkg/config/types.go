package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Network identifies the chain endpoint under test.
type Network struct {
	// Name is a human-readable label ("devnet", "sepolia", ...).
	Name string `yaml:"name" json:"name"`
	// RPCURL is the JSON-RPC endpoint consumed by the SDK provider.
	RPCURL string `yaml:"rpc_url" json:"rpcUrl"`
	// DevnetURL is the management REST endpoint of starknet-devnet.
	// Empty means the network offers no management API.
	DevnetURL string `yaml:"devnet_url" json:"devnetUrl,omitempty"`
	// ChainID is the short-string chain identifier ("SN_SEPOLIA").
	ChainID string `yaml:"chain_id" json:"chainId"`
	// FeeToken is the ERC-20 contract paying fees (defaults to the ETH token).
	FeeToken string `yaml:"fee_token" json:"feeToken"`
}

// Account carries the credentials of a pre-funded devnet account.
type Account struct {
	Address      string `yaml:"address" json:"address"`
	PrivateKey   string `yaml:"private_key" json:"privateKey"`
	PublicKey    string `yaml:"public_key" json:"publicKey"`
	CairoVersion int    `yaml:"cairo_version" json:"cairoVersion"`
}

// Options are the optional tuning knobs of the configuration contract.
type Options struct {
	CompilerVersion string   `yaml:"compiler_version" json:"compilerVersion,omitempty"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`
	RetryCount      int      `yaml:"retry_count" json:"retryCount"`
	RetryDelay      Duration `yaml:"retry_delay" json:"retryDelay"`
}

// Config aggregates the full configuration contract.
type Config struct {
	Network Network `yaml:"network" json:"network"`
	Account Account `yaml:"account" json:"account"`
	Options Options `yaml:"options" json:"options"`
}

// Duration wraps time.Duration with YAML decoding of Go duration strings
// ("500ms", "1m30s") and bare integers interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asInt int64
	if err := value.Decode(&asInt); err == nil {
		*d = Duration(time.Duration(asInt) * time.Second)
		return nil
	}
	var asString string
	if err := value.Decode(&asString); err != nil {
		return fmt.Errorf("config: invalid duration node: %w", err)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", asString, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

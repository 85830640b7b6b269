// Package config defines the configuration contract for talking to a
// Starknet development network: a network descriptor, an account descriptor,
// and optional tuning knobs (compiler version, timeout, retry count/delay).
// Values resolve from an optional YAML file, overridden by STARKDEV_*
// environment variables, falling back to starknet-devnet defaults.
package config

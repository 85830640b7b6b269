package devnet

import (
	"fmt"
	"os"
	"strings"

	"github.com/starklab/starkdev_sdk_go/pkg/config"
)

// Resolution modes for NewFromEnv.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// NewFromEnv builds a Client from STARKDEV_MODE and STARKDEV_DEVNET_URL and
// reports the mode it resolved to.
//
// "http" requires STARKDEV_DEVNET_URL; "auto" falls back to the default local
// devnet URL when unset. "mock" is wired one level up, where the in-memory
// devnet can be attached via NewWithBackend without an import cycle.
func NewFromEnv(opts ...Option) (*Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(config.EnvMode)))
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeHTTP:
		baseURL := os.Getenv(config.EnvDevnetURL)
		if baseURL == "" {
			return nil, "", fmt.Errorf("devnet: %s=http requires %s", config.EnvMode, config.EnvDevnetURL)
		}
		c, err := New(baseURL, opts...)
		return c, ModeHTTP, err
	case ModeAuto:
		baseURL := os.Getenv(config.EnvDevnetURL)
		if baseURL == "" {
			baseURL = config.Default().Network.DevnetURL
		}
		c, err := New(baseURL, opts...)
		return c, ModeHTTP, err
	case ModeMock:
		return nil, "", fmt.Errorf("devnet: mode %q is resolved by the runtime package; use NewWithBackend with the mock backend", mode)
	default:
		return nil, "", fmt.Errorf("devnet: unknown %s value %q", config.EnvMode, mode)
	}
}

// Package starkdev_sdk assembles the SDK surfaces into one runtime: the
// JSON-RPC provider, the devnet management client, the funded account wallet
// and the batched reader, resolved from environment configuration. In mock
// mode it boots the in-memory devnet on a loopback listener so callers and
// tests run without any external process.
package starkdev_sdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NethermindEth/starknet.go/rpc"
	"go.uber.org/zap"

	"github.com/starklab/starkdev_sdk_go/pkg/config"
	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
	"github.com/starklab/starkdev_sdk_go/pkg/devnet/mock"
	"github.com/starklab/starkdev_sdk_go/pkg/multicall"
	"github.com/starklab/starkdev_sdk_go/pkg/wallet"
)

// Resolution modes for NewFromEnv.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Option configures NewFromEnv.
type Option func(*options)

type options struct {
	log        *zap.Logger
	configPath string
	mock       *mock.Mock
}

// WithLogger attaches a logger to the runtime and its clients.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithConfigPath loads the YAML config from path before applying env
// overrides.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithMock injects a preconfigured in-memory devnet, used when mock mode
// needs specific genesis state.
func WithMock(m *mock.Mock) Option {
	return func(o *options) { o.mock = m }
}

// Runtime bundles the resolved clients. Zero or more fields may be nil in
// http mode depending on configuration; mock mode always populates all of
// them.
type Runtime struct {
	Config   *config.Config
	Provider *rpc.Provider
	Devnet   *devnet.Client
	Wallet   *wallet.Wallet
	Reader   *multicall.Reader
	Log      *zap.Logger

	mode     string
	shutdown func(context.Context) error
}

// Mode reports which transport the runtime resolved to.
func (r *Runtime) Mode() string { return r.mode }

// Close releases runtime resources; in mock mode it stops the embedded
// devnet server. Safe to call more than once.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil || r.shutdown == nil {
		return nil
	}
	fn := r.shutdown
	r.shutdown = nil
	return fn(ctx)
}

// NewFromEnv resolves configuration and constructs the runtime.
//
// STARKDEV_MODE selects the transport: "http" talks to a running devnet,
// "mock" boots the in-memory one, and "auto" (the default) picks http when
// STARKDEV_RPC_URL is set and mock otherwise.
func NewFromEnv(opts ...Option) (*Runtime, string, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, "", err
	}

	mode := strings.ToLower(strings.TrimSpace(os.Getenv(config.EnvMode)))
	if mode == "" {
		mode = ModeAuto
	}
	if mode == ModeAuto {
		if os.Getenv(config.EnvRPCURL) != "" {
			mode = ModeHTTP
		} else {
			mode = ModeMock
		}
	}

	switch mode {
	case ModeMock:
		rt, err := newMockRuntime(&cfg, &o)
		return rt, ModeMock, err
	case ModeHTTP:
		rt, err := newHTTPRuntime(&cfg, &o)
		return rt, ModeHTTP, err
	default:
		return nil, "", fmt.Errorf("starkdev: unknown %s value %q", config.EnvMode, mode)
	}
}

func newMockRuntime(cfg *config.Config, o *options) (*Runtime, error) {
	m := o.mock
	if m == nil {
		m = mock.New(mock.WithChainID(cfg.Network.ChainID))
	} else {
		// An injected mock owns the chain id; keep the config in agreement
		// so signatures bind to the chain the node reports.
		cfg.Network.ChainID = m.ChainName()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starkdev: listen for mock devnet: %w", err)
	}
	server := &http.Server{Handler: mock.Handler(m, mock.WithHandlerLogger(o.log))}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Warn("mock devnet server stopped", zap.Error(err))
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	cfg.Network.RPCURL = baseURL
	cfg.Network.DevnetURL = baseURL
	cfg.Network.FeeToken = mock.ETHTokenHex

	seed := m.PredeployedAccounts()[0]
	cfg.Account = config.Account{
		Address:      seed.Address.String(),
		PrivateKey:   seed.PrivateKey.String(),
		PublicKey:    seed.PublicKey.String(),
		CairoVersion: 2,
	}

	rt, err := buildRuntime(cfg, o, ModeMock, devnet.NewWithBackend(mock.NewBackend(m), devnet.WithLogger(o.log)))
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil, err
	}
	rt.shutdown = server.Shutdown
	return rt, nil
}

func newHTTPRuntime(cfg *config.Config, o *options) (*Runtime, error) {
	// An empty devnet_url means the network has no management API; the
	// runtime still works, with Devnet left nil.
	var dc *devnet.Client
	if strings.TrimSpace(cfg.Network.DevnetURL) != "" {
		var err error
		dc, err = devnet.New(cfg.Network.DevnetURL,
			devnet.WithLogger(o.log),
			devnet.WithTuning(cfg.Options))
		if err != nil {
			return nil, err
		}
	}
	return buildRuntime(cfg, o, ModeHTTP, dc)
}

const httpShutdownGrace = 5 * time.Second

func buildRuntime(cfg *config.Config, o *options, mode string, dc *devnet.Client) (*Runtime, error) {
	provider, err := rpc.NewProvider(cfg.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("starkdev: init provider: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Provider: provider,
		Devnet:   dc,
		Reader:   multicall.New(provider),
		Log:      o.log,
		mode:     mode,
	}
	if cfg.Account.HasCredentials() {
		w, err := wallet.New(provider, cfg.Account, cfg.Network, cfg.Options)
		if err != nil {
			return nil, err
		}
		rt.Wallet = w
	}
	o.log.Debug("runtime ready",
		zap.String("mode", mode),
		zap.String("rpc_url", cfg.Network.RPCURL),
		zap.Bool("wallet", rt.Wallet != nil))
	return rt, nil
}

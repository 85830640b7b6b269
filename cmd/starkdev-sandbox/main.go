// starkdev-sandbox is a developer utility around the devnet tooling: it can
// serve the in-memory mock devnet over HTTP (with optional latency and
// failure injection) and run one-shot admin and wallet operations against a
// devnet from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/starklab/starkdev_sdk_go/pkg/config"
	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
	"github.com/starklab/starkdev_sdk_go/pkg/devnet/mock"
	"github.com/starklab/starkdev_sdk_go/pkg/wallet"
)

var (
	flagDevnetURL string
	flagVerbose   bool
)

func main() {
	root := &cobra.Command{
		Use:           "starkdev-sandbox",
		Short:         "Local Starknet devnet tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDevnetURL, "devnet-url", "", "devnet base URL (defaults to config/env resolution)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(serveCmd(), accountsCmd(), mintCmd(), balanceCmd(), transferCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func devnetClient(log *zap.Logger) (*devnet.Client, error) {
	baseURL := flagDevnetURL
	if baseURL == "" {
		cfg, err := config.Resolve("")
		if err != nil {
			return nil, err
		}
		baseURL = cfg.Network.DevnetURL
	}
	return devnet.New(baseURL, devnet.WithLogger(log))
}

func serveCmd() *cobra.Command {
	var (
		addr        string
		latency     time.Duration
		failureRate float64
		chainID     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the in-memory mock devnet over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			m := mock.New(mock.WithChainID(chainID))
			handler := mock.Handler(m,
				mock.WithLatency(latency),
				mock.WithFailureRate(failureRate),
				mock.WithHandlerLogger(log),
			)
			server := &http.Server{Addr: addr, Handler: handler}

			runID := uuid.NewString()
			log.Info("mock devnet listening",
				zap.String("addr", addr),
				zap.String("chain_id", chainID),
				zap.String("run_id", runID),
				zap.Duration("latency", latency),
				zap.Float64("failure_rate", failureRate))
			for _, a := range m.PredeployedAccounts() {
				log.Info("predeployed account",
					zap.String("address", a.Address.String()),
					zap.String("private_key", a.PrivateKey.String()),
					zap.String("initial_balance", a.InitialBalance))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5050", "listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "inject a fixed delay into every response")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "fraction of requests to fail with a 500")
	cmd.Flags().StringVar(&chainID, "chain-id", "SN_SEPOLIA", "chain id short string")
	return cmd
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the predeployed devnet accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			c, err := devnetClient(log)
			if err != nil {
				return err
			}
			accounts, err := c.PredeployedAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(accounts)
		},
	}
}

func mintCmd() *cobra.Command {
	var (
		address string
		amount  string
		unit    string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint fee tokens to an address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			addr, err := utils.HexToFelt(address)
			if err != nil {
				return fmt.Errorf("parse --address: %w", err)
			}
			value, ok := new(big.Int).SetString(amount, 10)
			if !ok {
				return errors.New("parse --amount: want a decimal integer")
			}
			c, err := devnetClient(log)
			if err != nil {
				return err
			}
			res, err := c.Mint(cmd.Context(), addr, value, devnet.BalanceUnit(unit))
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"new_balance": res.NewBalance.String(),
				"unit":        string(res.Unit),
				"tx_hash":     res.TxHash.String(),
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in the token's smallest unit")
	cmd.Flags().StringVar(&unit, "unit", string(devnet.UnitWEI), "balance unit (WEI or FRI)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func balanceCmd() *cobra.Command {
	var (
		address string
		unit    string
	)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Query an account's fee token balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			addr, err := utils.HexToFelt(address)
			if err != nil {
				return fmt.Errorf("parse --address: %w", err)
			}
			c, err := devnetClient(log)
			if err != nil {
				return err
			}
			bal, err := c.AccountBalance(cmd.Context(), addr, devnet.BalanceUnit(unit))
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"amount": bal.Amount.String(),
				"unit":   string(bal.Unit),
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "account address")
	cmd.Flags().StringVar(&unit, "unit", string(devnet.UnitWEI), "balance unit (WEI or FRI)")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func transferCmd() *cobra.Command {
	var (
		to     string
		amount string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer fee tokens from the configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			cfg, err := config.Resolve("")
			if err != nil {
				return err
			}
			if !cfg.Account.HasCredentials() {
				return fmt.Errorf("account credentials missing; set %s, %s and %s",
					config.EnvAccountAddress, config.EnvPrivateKey, config.EnvPublicKey)
			}

			recipient, err := utils.HexToFelt(to)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			value, ok := new(big.Int).SetString(amount, 10)
			if !ok {
				return errors.New("parse --amount: want a decimal integer")
			}

			provider, err := rpc.NewProvider(cfg.Network.RPCURL)
			if err != nil {
				return err
			}
			w, err := wallet.New(provider, cfg.Account, cfg.Network, cfg.Options)
			if err != nil {
				return err
			}

			txHash, err := w.Transfer(cmd.Context(), recipient, value)
			if err != nil {
				return err
			}
			log.Info("transfer submitted", zap.String("tx_hash", txHash.String()))

			status, err := w.WaitForStatus(cmd.Context(), txHash)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"tx_hash":          txHash.String(),
				"finality_status":  string(status.FinalityStatus),
				"execution_status": string(status.ExecutionStatus),
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in wei")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package devnet_test

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/NethermindEth/starknet.go/utils"

	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
	"github.com/starklab/starkdev_sdk_go/pkg/devnet/mock"
)

func newTestClient(t *testing.T) (*devnet.Client, *mock.Mock) {
	t.Helper()
	m := mock.New()
	srv := httptest.NewServer(mock.Handler(m))
	t.Cleanup(srv.Close)

	c, err := devnet.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, m
}

func TestIsAlive(t *testing.T) {
	c, _ := newTestClient(t)
	alive, err := c.IsAlive(context.Background())
	if err != nil {
		t.Fatalf("is alive: %v", err)
	}
	if !alive {
		t.Fatal("expected devnet to report alive")
	}
}

func TestPredeployedAccounts(t *testing.T) {
	c, _ := newTestClient(t)
	accounts, err := c.PredeployedAccounts(context.Background())
	if err != nil {
		t.Fatalf("predeployed accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(accounts))
	}
	a := accounts[0]
	if a.Address == nil || a.PublicKey == nil || a.PrivateKey == nil {
		t.Fatalf("incomplete account: %+v", a)
	}
	if a.InitialBalance == "" {
		t.Fatal("missing initial balance")
	}
}

func TestMintAndBalance(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	address, err := utils.HexToFelt("0xcafe")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}

	res, err := c.Mint(ctx, address, big.NewInt(90_000), devnet.UnitWEI)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if res.NewBalance.Int64() != 90_000 {
		t.Fatalf("new balance = %s, want 90000", res.NewBalance)
	}
	if res.TxHash == nil {
		t.Fatal("mint tx hash missing")
	}

	bal, err := c.AccountBalance(ctx, address, devnet.UnitWEI)
	if err != nil {
		t.Fatalf("account balance: %v", err)
	}
	if bal.Amount.Int64() != 90_000 {
		t.Fatalf("balance = %s, want 90000", bal.Amount)
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	address, _ := utils.HexToFelt("0xcafe")

	if _, err := c.Mint(ctx, nil, big.NewInt(1), devnet.UnitWEI); err == nil {
		t.Fatal("expected error for nil address")
	}
	if _, err := c.Mint(ctx, address, big.NewInt(0), devnet.UnitWEI); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestAccountBalanceNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	address, _ := utils.HexToFelt("0xdeadbeef")

	_, err := c.AccountBalance(context.Background(), address, devnet.UnitWEI)
	if !errors.Is(err, devnet.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBlockAndTimeControls(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	info, err := c.SetTime(ctx, 1_700_000_000)
	if err != nil {
		t.Fatalf("set time: %v", err)
	}
	if info.BlockTimestamp != 1_700_000_000 {
		t.Fatalf("timestamp = %d, want 1700000000", info.BlockTimestamp)
	}

	info, err = c.IncreaseTime(ctx, 3600)
	if err != nil {
		t.Fatalf("increase time: %v", err)
	}
	if info.BlockTimestamp != 1_700_003_600 {
		t.Fatalf("timestamp = %d, want 1700003600", info.BlockTimestamp)
	}

	info, err = c.CreateBlock(ctx)
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if info.BlockHash == nil {
		t.Fatal("missing block hash")
	}
}

func TestRestart(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	address, _ := utils.HexToFelt("0xcafe")

	if _, err := c.Mint(ctx, address, big.NewInt(1), devnet.UnitWEI); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := c.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := c.AccountBalance(ctx, address, devnet.UnitWEI); !errors.Is(err, devnet.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after restart, got %v", err)
	}
}

func TestNewWithBackend(t *testing.T) {
	m := mock.New()
	c := devnet.NewWithBackend(mock.NewBackend(m))

	accounts, err := c.PredeployedAccounts(context.Background())
	if err != nil {
		t.Fatalf("predeployed accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(accounts))
	}
}

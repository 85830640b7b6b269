// Package devnet provides a client for the starknet-devnet management API:
// liveness, predeployed account discovery, minting, balance queries and
// block/time controls. The JSON-RPC chain surface itself is consumed through
// the starknet.go provider; this package only covers the REST endpoints a
// local devnet exposes next to it. The public API centres around the Client
// type; backends are swappable so the in-memory mock from pkg/devnet/mock can
// stand in for a real node.
package devnet

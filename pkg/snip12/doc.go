// Package snip12 implements the off-chain typed-data hashing scheme used by
// Starknet accounts (SNIP-12): short-string encoding, type hashes derived via
// starknet_keccak, and struct/message hashes for revision 0 (Pedersen) and
// revision 1 (Poseidon). The hash primitives themselves come from the juno
// core/crypto package; this package only composes them.
package snip12

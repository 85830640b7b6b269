package snip12

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
)

// Revision selects the hashing scheme of a typed-data message.
type Revision int

const (
	// Revision0 hashes with Pedersen and the legacy StarkNetDomain.
	Revision0 Revision = 0
	// Revision1 hashes with Poseidon and the StarknetDomain introduced by
	// SNIP-12.
	Revision1 Revision = 1
)

// messagePrefix is the short string prepended to every signed message.
const messagePrefix = "StarkNet Message"

// maxShortStringLen is the Cairo short-string limit (31 ASCII bytes).
const maxShortStringLen = 31

// ErrShortStringTooLong is returned for strings above 31 bytes.
var ErrShortStringTooLong = errors.New("snip12: short string exceeds 31 characters")

// EncodeShortString encodes an ASCII string of up to 31 bytes as a felt,
// big-endian, the way Cairo short strings are represented.
func EncodeShortString(s string) (*felt.Felt, error) {
	if len(s) > maxShortStringLen {
		return nil, fmt.Errorf("%w: %q", ErrShortStringTooLong, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("snip12: short string %q is not ASCII", s)
		}
	}
	return new(felt.Felt).SetBytes([]byte(s)), nil
}

// MustShortString is EncodeShortString for compile-time constants.
func MustShortString(s string) *felt.Felt {
	f, err := EncodeShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// TypeHash returns starknet_keccak of the fully-expanded type encoding, e.g.
// "StarkNetDomain(name:felt,version:felt,chainId:felt)".
func TypeHash(encodedType string) *felt.Felt {
	return crypto.StarknetKeccak([]byte(encodedType))
}

// HashElements hashes a felt sequence with the revision's array hash:
// Pedersen chain with length finalization for revision 0, Poseidon sponge for
// revision 1.
func HashElements(rev Revision, elems ...*felt.Felt) *felt.Felt {
	if rev == Revision1 {
		return crypto.PoseidonArray(elems...)
	}
	return crypto.PedersenArray(elems...)
}

// HashStruct computes h(typeHash, field_0, ..., field_n) for one struct.
// Array-typed fields must already be collapsed via HashElements.
func HashStruct(rev Revision, typeHash *felt.Felt, fields ...*felt.Felt) *felt.Felt {
	elems := make([]*felt.Felt, 0, len(fields)+1)
	elems = append(elems, typeHash)
	elems = append(elems, fields...)
	return HashElements(rev, elems...)
}

// Domain is the signing domain bound into every message hash.
type Domain struct {
	Name    string
	Version string
	ChainID string
}

// Type encodings of the two domain revisions. Revision 1 quotes identifiers
// and adds the revision field, per SNIP-12.
const (
	domainTypeRev0 = "StarkNetDomain(name:felt,version:felt,chainId:felt)"
	domainTypeRev1 = `"StarknetDomain"("name":"shortstring","version":"shortstring","chainId":"shortstring","revision":"shortstring")`
)

// Hash returns the domain separator struct hash for the revision.
func (d Domain) Hash(rev Revision) (*felt.Felt, error) {
	name, err := EncodeShortString(d.Name)
	if err != nil {
		return nil, fmt.Errorf("snip12: domain name: %w", err)
	}
	version, err := EncodeShortString(d.Version)
	if err != nil {
		return nil, fmt.Errorf("snip12: domain version: %w", err)
	}
	chainID, err := EncodeShortString(d.ChainID)
	if err != nil {
		return nil, fmt.Errorf("snip12: domain chain id: %w", err)
	}
	if rev == Revision1 {
		revision := new(felt.Felt).SetUint64(1)
		return HashStruct(rev, TypeHash(domainTypeRev1), name, version, chainID, revision), nil
	}
	return HashStruct(rev, TypeHash(domainTypeRev0), name, version, chainID), nil
}

// MessageHash binds a struct hash to the signing domain and the signer
// account: h("StarkNet Message", domain, account, structHash).
func MessageHash(rev Revision, domain Domain, account, structHash *felt.Felt) (*felt.Felt, error) {
	if account == nil || structHash == nil {
		return nil, errors.New("snip12: account and struct hash are required")
	}
	domainHash, err := domain.Hash(rev)
	if err != nil {
		return nil, err
	}
	prefix := MustShortString(messagePrefix)
	return HashElements(rev, prefix, domainHash, account, structHash), nil
}

package order

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// IDLen is the length of a rendered identity: "0x" plus 64 hex characters.
const IDLen = 2 + 2*32

// Hash computes the Keccak-256 digest of data (the legacy Keccak padding used
// by Ethereum, not FIPS SHA3-256) and renders it as "0x" plus 64 lowercase
// hex characters. The full digest is kept.
func Hash(data []byte) string {
	return hexutil.Encode(crypto.Keccak256(data))
}

// Identity computes the record key of an order.
// The key is stable across processes and depends on nothing but in.
// Returns an *EncodingError if any field cannot be canonically encoded.
func Identity(in IdentityInput) (string, error) {
	id, _, err := Derive(in)
	return id, err
}

// Derive computes the record key and the canonical form of the identity
// tuple in one pass. The canonical form is what a new Record stores.
func Derive(in IdentityInput) (string, IdentityInput, error) {
	encoded, raw, err := pack(in)
	if err != nil {
		return "", IdentityInput{}, fmt.Errorf("identity: %w", err)
	}
	return Hash(raw), normalized(encoded, in), nil
}

// MustIdentity is like Identity but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIdentity(in IdentityInput) string {
	id, err := Identity(in)
	if err != nil {
		panic(err)
	}
	return id
}

// NormalizeID validates a rendered identity and returns it in lowercase.
// The "0x" prefix is required; callers accepting bare digits add it first.
func NormalizeID(id string) (string, error) {
	if len(id) != IDLen || !strings.HasPrefix(id, "0x") {
		return "", fmt.Errorf("invalid order id %q: want 0x followed by 64 hex characters", id)
	}
	if _, err := hex.DecodeString(id[2:]); err != nil {
		return "", fmt.Errorf("invalid order id %q: %w", id, err)
	}
	return strings.ToLower(id), nil
}

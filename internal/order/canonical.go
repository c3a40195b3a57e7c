package order

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Fixed widths of the canonical encoding, in hex characters.
// CRITICAL: changing any width changes every derived identity.
const (
	AddressHexWidth = 40 // 160 bits
	WordHexWidth    = 64 // 256 bits

	// EncodedHexLen is the length of EncodeHex output.
	EncodedHexLen = 4*AddressHexWidth + 3*WordHexWidth

	// EncodedLen is the length of Encode output in bytes.
	EncodedLen = EncodedHexLen / 2
)

// EncodeHex renders the identity tuple as its canonical hex string.
//
// Format, with no delimiters:
//
//	makerAddress(40) takerAddress(40) makerAsset(40) takerAsset(40)
//	makerAmount(64)  takerAmount(64)  expiration(64)
//
// Each field is lowercase and zero-padded on the left. A leading "0x" is
// stripped from addresses. Output never carries a prefix.
func EncodeHex(in IdentityInput) (string, error) {
	var b strings.Builder
	b.Grow(EncodedHexLen)

	addrs := [...]struct {
		field string
		value string
	}{
		{FieldMakerAddress, in.MakerAddress},
		{FieldTakerAddress, in.TakerAddress},
		{FieldMakerAsset, in.MakerAsset},
		{FieldTakerAsset, in.TakerAsset},
	}
	for _, a := range addrs {
		word, err := addressWord(a.field, a.value)
		if err != nil {
			return "", err
		}
		b.WriteString(word)
	}

	words := [...]struct {
		field string
		value *big.Int
	}{
		{FieldMakerAmount, in.MakerAmount},
		{FieldTakerAmount, in.TakerAmount},
		{FieldExpiration, in.Expiration},
	}
	for _, w := range words {
		word, err := uintWord(w.field, w.value)
		if err != nil {
			return "", err
		}
		b.WriteString(word)
	}

	return b.String(), nil
}

// Encode returns the canonical byte encoding of the identity tuple.
// The result is EncodedLen bytes and equals Solidity's
// abi.encodePacked(address, address, address, address, uint256, uint256, uint256).
func Encode(in IdentityInput) ([]byte, error) {
	_, out, err := pack(in)
	return out, err
}

// pack returns both renderings of the canonical encoding.
func pack(in IdentityInput) (string, []byte, error) {
	s, err := EncodeHex(in)
	if err != nil {
		return "", nil, err
	}
	// Every word is validated hex of even width, decoding cannot fail.
	out, err := hex.DecodeString(s)
	if err != nil {
		return "", nil, &EncodingError{Field: "identity", Value: s, Width: EncodedHexLen, Reason: err.Error()}
	}
	return s, out, nil
}

// Normalize returns the identity tuple in canonical form: addresses as "0x"
// plus 40 lowercase hex characters, amounts copied. Fails exactly when
// EncodeHex fails.
func Normalize(in IdentityInput) (IdentityInput, error) {
	s, err := EncodeHex(in)
	if err != nil {
		return IdentityInput{}, err
	}
	return normalized(s, in), nil
}

// normalized slices the address words back out of an EncodeHex result.
func normalized(encoded string, in IdentityInput) IdentityInput {
	addr := func(i int) string {
		return "0x" + encoded[i*AddressHexWidth:(i+1)*AddressHexWidth]
	}
	return IdentityInput{
		MakerAddress: addr(0),
		TakerAddress: addr(1),
		MakerAsset:   addr(2),
		TakerAsset:   addr(3),
		MakerAmount:  cloneInt(in.MakerAmount),
		TakerAmount:  cloneInt(in.TakerAmount),
		Expiration:   cloneInt(in.Expiration),
	}
}

// NormalizeAddress returns s as "0x" plus 40 lowercase hex characters.
func NormalizeAddress(s string) (string, error) {
	word, err := addressWord("address", s)
	if err != nil {
		return "", err
	}
	return "0x" + word, nil
}

// addressWord renders an address-like value as 40 lowercase hex characters.
//
// Leading zeros carry no value, so "0xabc" and "0x0abc" render identically.
// A value that still needs more than 160 bits is an error, never truncated.
func addressWord(field, value string) (string, error) {
	digits := value
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}

	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return "", &EncodingError{Field: field, Value: value, Width: AddressHexWidth, Reason: "not a hex string"}
		}
	}

	digits = strings.TrimLeft(digits, "0")
	if len(digits) > AddressHexWidth {
		return "", &EncodingError{Field: field, Value: value, Width: AddressHexWidth, Reason: "exceeds 160 bits"}
	}

	return strings.Repeat("0", AddressHexWidth-len(digits)) + strings.ToLower(digits), nil
}

// uintWord renders an unsigned integer as 64 lowercase hex characters.
func uintWord(field string, v *big.Int) (string, error) {
	if v == nil {
		return "", &EncodingError{Field: field, Value: "<nil>", Width: WordHexWidth, Reason: "missing value"}
	}
	if v.Sign() < 0 {
		return "", &EncodingError{Field: field, Value: v.String(), Width: WordHexWidth, Reason: "negative value"}
	}

	u, overflow := uint256.FromBig(v)
	if overflow {
		return "", &EncodingError{Field: field, Value: v.String(), Width: WordHexWidth, Reason: "exceeds 256 bits"}
	}

	word := u.Bytes32()
	return hex.EncodeToString(word[:]), nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

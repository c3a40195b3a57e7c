// Package order defines limit-order identity: the update event shape, the
// persisted record, the canonical encoding of an order's immutable attributes
// and the Keccak-256 identity derived from it.
//
// This package imports nothing internal. Every other package derives record
// keys through Identity or Derive; no other code path may compute a key.
//
// Key design constraints:
//   - Encoding is positional and delimiter-free: four 160-bit address words
//     followed by three 256-bit words. Widths are part of the identity.
//   - Values never truncate. An over-wide value is an *EncodingError.
//   - The remaining amount is NOT part of the identity (IdentityScheme).
package order

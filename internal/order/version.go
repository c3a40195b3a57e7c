package order

// IdentityScheme names the identity derivation implemented by Identity.
//
// "packed-v2" is keccak256 over the seven identity fields packed as
// abi.encodePacked(address, address, address, address, uint256, uint256,
// uint256). The v1 scheme also packed the remaining amount, which made every
// update its own record. Stores persist this value and refuse to mix schemes.
const IdentityScheme = "keccak256/packed-v2"

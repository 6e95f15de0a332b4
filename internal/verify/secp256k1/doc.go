// Package secp256k1 verifies Ethereum-style `personal_sign` signatures by
// recovery: it reconstructs the signer's public key from the message hash
// and the signature's (r, s, v) triple, then compares the recovered key
// against the one the caller expected, rather than verifying against a
// known key directly. This mirrors how Ethereum wallets and the contracts
// that accept their signatures have always worked — there is no
// "ecdsa.Verify" step, only "ecrecover" followed by an equality check.
package secp256k1

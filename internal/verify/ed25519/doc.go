// Package ed25519 verifies Solana-style Ed25519 signatures using
// consensus-critical ("strict") verification rules — rejecting small-order
// points and non-canonical encodings that the stdlib crypto/ed25519
// verifier accepts — matching the scrutiny a signature gets before it is
// allowed to move real funds.
//
// Public keys are base58, Solana's wallet convention. Signatures accept
// either standard base64 or base58, since wallet SDKs across the Solana
// ecosystem disagree on which to emit over the wire.
package ed25519

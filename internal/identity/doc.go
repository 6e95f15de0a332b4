// Package identity implements the closed-world identity sum type (spec §3,
// §4.6): the four credential variants an account can attach — Wallet
// (Ethereum/Solana), WebAuthn, OIDC, and the reserved Account variant — plus
// the derivation-path projection and the permissive WebAuthn equality rule.
//
// The variant tag follows the same "discriminant + interface payload"
// pattern as v2/internal/crypto's AccountAuthenticator
// (v2/internal/crypto/authenticator.go): a Kind field selects which payload
// fields are meaningful, and JSON (de)serialization dispatches on it the way
// that package's BCS (de)serialization dispatches on AccountAuthenticatorType.
// Adding a fifth variant requires a verifier (C2-C5) and a path projection
// simultaneously; see spec.md §9.
package identity

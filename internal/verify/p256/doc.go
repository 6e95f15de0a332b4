// Package p256 verifies WebAuthn/passkey assertion signatures over NIST
// P-256 (secp256r1), the credential format issued by platform
// authenticators and roaming security keys.
//
// The signed blob is not the client's challenge directly; it is
// authenticatorData concatenated with SHA-256 of clientDataJSON, per the
// WebAuthn assertion format. Binding the challenge embedded inside
// clientDataJSON back to an expected value is the caller's job (see
// internal/dispatch) — this package only answers "does this signature
// verify against this key", nothing more.
package p256

// Package oidc verifies RS256-signed OIDC identity tokens against a small,
// operator-managed set of per-issuer signing keys, rather than fetching a
// JWKS endpoint live — this core has no network access of its own (see
// internal/relay for the one component that does reach outward), so key
// material is pushed in by a privileged caller and held in a KeyStore,
// exactly KeySetSize keys per issuer.
//
// Token freshness is not governed by exp/iat/nbf: the JWT's `nonce` claim
// must equal the canonicalized operation it authorizes, so a token is only
// ever usable for the single operation that minted it. Do not add
// expiration checks here; that would weaken, not strengthen, the binding.
package oidc

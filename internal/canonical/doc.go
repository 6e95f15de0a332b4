// Package canonical implements deterministic JSON serialization per RFC 8785
// (the JSON Canonicalization Scheme, JCS).
//
// Every credential verifier in this module signs and verifies against the
// canonical byte form of a transaction, never against a transaction's
// "natural" JSON encoding — two semantically identical payloads produced by
// different JSON encoders (different key order, different float formatting)
// must canonicalize to byte-identical output, or cross-client signatures
// would not verify.
//
// # Determinism contract
//
//	data, err := canonical.Marshal(txn)
//	data2, err := canonical.Marshal(txn)
//	// data == data2, always, for any value built from the types this
//	// package supports.
//
// # Supported shapes
//
//   - nil, bool, string
//   - json.Number / any Go numeric type (formatted per ECMA-262 6.1.6,
//     the "shortest round-trip" rule JCS mandates)
//   - []any / any Go slice or array
//   - map[string]any / any Go struct (object keys sorted by UTF-16 code
//     unit, per RFC 8785 §3.2.3)
//
// Non-finite floats (NaN, +Inf, -Inf) and any value JSON cannot represent
// have no canonical form and produce a *CanonicalizationError.
package canonical

// Package dispatch implements the operation dispatcher (C8): the auth(userOp)
// state machine of spec.md §4.8 — validate, bump the nonce, inject the
// WebAuthn compressed key, verify credentials, then apply the action to the
// account store (C7) or the remote signing relay (C9).
//
// Rejections are returned as *AuthError, the idiomatic Go rendering of the
// host-runtime panic spec.md §7 describes: there is no partial success at
// the auth() boundary, so every non-nil error from Dispatcher.Auth means no
// durable state changed beyond (at most) the consumed nonce.
package dispatch

// Package relay implements the remote signing relay (spec §4.9): turning a
// Sign action plus an identity's derivation path into one or more outbound
// signing requests. The relay is stateless — retries and partial failures
// are handled by the caller, not this package.
package relay

// Package accountstore implements the account state machine (spec §3, §4.7):
// a map of account id to its attached identities and nonce, plus the
// process-wide global max-nonce watermark that defeats account-resurrection
// replays.
//
// Every method that adds or removes an account or an identity brackets
// itself with a storage-usage delta against the account, the same "charge
// at write time" discipline on-chain storage rent accounting applies; see
// UsageRecorder. IncrementNonce records no usage delta.
package accountstore

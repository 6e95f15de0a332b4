package dispatch

// ErrorKind names one row of the §7 error taxonomy.
type ErrorKind string

const (
	KindInputShape       ErrorKind = "input_shape"
	KindMembership       ErrorKind = "membership"
	KindReplay           ErrorKind = "replay"
	KindPermission       ErrorKind = "permission"
	KindChallengeBinding ErrorKind = "challenge_binding"
	KindCryptoVerify     ErrorKind = "crypto_verify"
	KindHostError        ErrorKind = "host_error"
)

// AuthError is the host-runtime-visible rejection a failed auth() call
// produces: spec.md §6 describes this as a "panic carrying one of the
// taxonomized messages in §7". Go has no contract-panic primitive, so this
// is the idiomatic rendering — a distinguished error type the caller can
// type-assert on to recover Kind for logging or client-facing mapping,
// exactly as the dispatcher's HTTP host (cmd/authcored) does.
type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func authErr(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

package ed25519

import (
	"encoding/base64"

	"github.com/hdevalence/ed25519consensus"
	"github.com/mr-tron/base58"
)

const (
	publicKeyLength = 32
	signatureLength = 64
)

// Verify reports whether signature (base64-standard or base58) is a valid
// strict Ed25519 signature over message, under the base58-encoded
// publicKey.
//
// Decode failures and verification failures are both reported as false;
// callers cannot act differently on "the signature was malformed" versus
// "the signature did not verify", so there is no error return.
func Verify(message, signature, publicKey string) bool {
	pub, err := base58.Decode(publicKey)
	if err != nil || len(pub) != publicKeyLength {
		return false
	}

	sig, ok := decodeSignature(signature)
	if !ok || len(sig) != signatureLength {
		return false
	}

	return ed25519consensus.Verify(pub, []byte(message), sig)
}

func decodeSignature(s string) ([]byte, bool) {
	if raw, err := base58.Decode(s); err == nil && len(raw) == signatureLength {
		return raw, true
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == signatureLength {
		return raw, true
	}
	return nil, false
}

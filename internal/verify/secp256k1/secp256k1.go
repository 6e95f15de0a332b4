package secp256k1

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	signatureLength = 65
	ethPrefix       = "\x19Ethereum Signed Message:\n"
)

// Verify reports whether signatureHex is a valid Ethereum `personal_sign`
// signature over message, recovered against expectedCompressedKeyHex.
//
// Every failure mode — malformed hex, wrong-length signature, an
// unrecoverable (r, s, v) triple — reports false; ecrecover has no notion
// of "verification failed", only "a key was recovered" or "it wasn't", so
// there is nothing here worth surfacing as an error to the caller.
func Verify(message, signatureHex, expectedCompressedKeyHex string) bool {
	sig, ok := decodeHex(signatureHex)
	if !ok || len(sig) != signatureLength {
		return false
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return false
	}
	recoverable := make([]byte, signatureLength)
	copy(recoverable, sig[:64])
	recoverable[64] = v

	digest := ethcrypto.Keccak256(prefixedMessage(message))

	pub, err := ethcrypto.SigToPub(digest, recoverable)
	if err != nil {
		return false
	}
	recoveredCompressed := ethcrypto.CompressPubkey(pub)

	expected, ok := decodeHex(expectedCompressedKeyHex)
	if !ok {
		return false
	}
	// Reject a syntactically hex-valid but off-curve or malformed key up
	// front, rather than let it merely fail the byte comparison below.
	if _, err := secp256k1.ParsePubKey(expected); err != nil {
		return false
	}

	return strings.EqualFold(hex.EncodeToString(recoveredCompressed), hex.EncodeToString(expected))
}

func prefixedMessage(message string) []byte {
	var b strings.Builder
	b.WriteString(ethPrefix)
	b.WriteString(strconv.Itoa(len(message)))
	b.WriteString(message)
	return []byte(b.String())
}

func decodeHex(s string) ([]byte, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

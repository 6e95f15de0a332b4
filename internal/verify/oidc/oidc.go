package oidc

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// KeySetSize is the fixed number of signing keys held per issuer, mirroring
// a typical IdP key-rotation window: the outgoing key stays valid for
// in-flight tokens while the incoming key takes over.
const KeySetSize = 2

// Key is a minimal JWK-like RSA signing key record.
type Key struct {
	Kid string
	N   string // base64url, big-endian modulus
	E   string // base64url, big-endian public exponent
	Alg string
	Kty string
	Use string
}

// ErrKeySetSize is returned by UpdateKeys when the supplied key slice is not
// exactly KeySetSize long.
var ErrKeySetSize = fmt.Errorf("oidc: issuer key set must have exactly %d keys", KeySetSize)

// KeyStore holds the current signing keys for every configured issuer.
// Updates are atomic: UpdateKeys clears and repopulates an issuer's entry
// in one step, never leaving a partially-updated set visible to a
// concurrent verification.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string][]Key
}

// NewKeyStore returns an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string][]Key)}
}

// UpdateKeys replaces the key set for issuer with keys, which must contain
// exactly KeySetSize entries.
func (s *KeyStore) UpdateKeys(issuer string, keys []Key) error {
	if len(keys) != KeySetSize {
		return ErrKeySetSize
	}
	stored := make([]Key, KeySetSize)
	copy(stored, keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[issuer] = stored
	return nil
}

// Keys returns a copy of the current key set for issuer, or an empty slice
// if none is configured.
func (s *KeyStore) Keys(issuer string) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.keys[issuer]
	out := make([]Key, len(stored))
	copy(out, stored)
	return out
}

func (s *KeyStore) lookup(issuer, kid string) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys[issuer] {
		if k.Kid == kid {
			return k, true
		}
	}
	return Key{}, false
}

// ValidationData is the token/message pair presented for OIDC verification.
type ValidationData struct {
	Token   string
	Message string
}

// Authenticator names the issuer, client, and expected subject identity a
// token must match. At least one of Email or Sub must be non-nil; Sub is
// preferred when both are present.
type Authenticator struct {
	Issuer   string
	ClientID string
	Email    *string
	Sub      *string
}

// Verify reports whether data.Token is a validly signed RS256 JWT, issued
// by auth.Issuer for auth.ClientID, bound to data.Message via the `nonce`
// claim, and asserting the identity named in auth.
//
// Every rejection reason — bad segment count, unknown kid, claim mismatch,
// bad signature — collapses to false. exp/iat/nbf are deliberately never
// consulted; see the package doc.
func Verify(data ValidationData, auth Authenticator, store *KeyStore) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, parts, err := parser.ParseUnverified(data.Token, jwt.MapClaims{})
	if err != nil || len(parts) != 3 {
		return false
	}

	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return false
	}
	key, ok := store.lookup(auth.Issuer, kid)
	if !ok {
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	if !claimsMatch(claims, auth, data.Message) {
		return false
	}

	pub, err := decodeRSAPublicKey(key.N, key.E)
	if err != nil {
		return false
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	signingInput := parts[0] + "." + parts[1]
	digest := sha256.Sum256([]byte(signingInput))

	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

func claimsMatch(claims jwt.MapClaims, auth Authenticator, message string) bool {
	iss, _ := claims["iss"].(string)
	if iss != auth.Issuer {
		return false
	}
	if !audienceMatches(claims["aud"], auth.ClientID) {
		return false
	}
	nonce, _ := claims["nonce"].(string)
	if nonce != message {
		return false
	}

	if auth.Sub != nil {
		sub, _ := claims["sub"].(string)
		return sub == *auth.Sub
	}
	if auth.Email != nil {
		email, _ := claims["email"].(string)
		return email == *auth.Email
	}
	return false
}

// audienceMatches handles the two shapes a JWT's "aud" claim can take on
// the wire: a bare string, or a single-element array of strings.
func audienceMatches(aud any, clientID string) bool {
	switch v := aud.(type) {
	case string:
		return v == clientID
	case []any:
		if len(v) != 1 {
			return false
		}
		s, ok := v[0].(string)
		return ok && s == clientID
	default:
		return false
	}
}

func decodeRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nB64))
	if err != nil {
		return nil, fmt.Errorf("oidc: decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eB64))
	if err != nil {
		return nil, fmt.Errorf("oidc: decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("oidc: empty key component")
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, errors.New("oidc: exponent out of range")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

package oidc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *KeyStore
	issuer   string
	clientID string
	priv     *rsa.PrivateKey
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := "https://accounts.google.com"
	clientID := "739911069797-abc.apps.googleusercontent.com"

	store := NewKeyStore()
	require.NoError(t, store.UpdateKeys(issuer, []Key{
		keyFromRSA("key-current", &priv.PublicKey),
		keyFromRSA("key-previous", &priv.PublicKey),
	}))

	return fixture{store: store, issuer: issuer, clientID: clientID, priv: priv}
}

func keyFromRSA(kid string, pub *rsa.PublicKey) Key {
	return Key{
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		Alg: "RS256",
		Kty: "RSA",
		Use: "sig",
	}
}

func (f fixture) issueToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "RS256", "typ": "JWT", "kid": "key-current"}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.priv, crypto.SHA256, digest[:])
	require.NoError(t, err)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func TestVerify_ValidTokenWithEmailAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "test_123_felipe",
		"email": "fs.pessina@gmail.com",
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "test_123_felipe"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email},
		f.store,
	)
	require.True(t, ok)
}

func TestVerify_ValidTokenWithSubPreferredOverEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "nonce-1",
		"sub":   "user-42",
		"email": "someone-else@example.com",
	})

	email := "attacker@example.com"
	sub := "user-42"
	ok := Verify(
		ValidationData{Token: token, Message: "nonce-1"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email, Sub: &sub},
		f.store,
	)
	require.True(t, ok, "sub must be checked in preference to email when both are present")
}

func TestVerify_WrongIssuerRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "n",
		"email": "fs.pessina@gmail.com",
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "n"},
		Authenticator{Issuer: "https://invalid-issuer.com", ClientID: f.clientID, Email: &email},
		f.store,
	)
	require.False(t, ok)
}

func TestVerify_WrongAudienceRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   "some-other-client",
		"nonce": "n",
		"email": "fs.pessina@gmail.com",
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "n"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email},
		f.store,
	)
	require.False(t, ok)
}

func TestVerify_NonceMismatchRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "original-operation",
		"email": "fs.pessina@gmail.com",
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "different-operation"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email},
		f.store,
	)
	require.False(t, ok)
}

func TestVerify_UnknownKidRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := NewKeyStore() // no keys registered for any issuer

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "n",
		"email": "fs.pessina@gmail.com",
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "n"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email},
		store,
	)
	require.False(t, ok)
}

func TestVerify_ExpiredTokenStillAcceptedBecauseExpIsNotChecked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	token := f.issueToken(t, map[string]any{
		"iss":   f.issuer,
		"aud":   f.clientID,
		"nonce": "n",
		"email": "fs.pessina@gmail.com",
		"exp":   1, // 1970, long expired
	})

	email := "fs.pessina@gmail.com"
	ok := Verify(
		ValidationData{Token: token, Message: "n"},
		Authenticator{Issuer: f.issuer, ClientID: f.clientID, Email: &email},
		f.store,
	)
	require.True(t, ok, "exp must never be enforced; freshness comes from the nonce binding alone")
}

func TestUpdateKeys_RejectsWrongCardinality(t *testing.T) {
	t.Parallel()
	store := NewKeyStore()
	err := store.UpdateKeys("https://issuer.example", []Key{{Kid: "only-one"}})
	require.ErrorIs(t, err, ErrKeySetSize)
}

func TestUpdateKeys_IsAtomic(t *testing.T) {
	t.Parallel()
	store := NewKeyStore()
	issuer := "https://issuer.example"
	require.NoError(t, store.UpdateKeys(issuer, []Key{{Kid: "a"}, {Kid: "b"}}))
	require.NoError(t, store.UpdateKeys(issuer, []Key{{Kid: "c"}, {Kid: "d"}}))

	keys := store.Keys(issuer)
	require.Len(t, keys, 2)
	for _, k := range keys {
		require.Contains(t, []string{"c", "d"}, k.Kid)
	}
}

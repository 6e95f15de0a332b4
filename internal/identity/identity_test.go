package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestIdentity_JSONRoundTrip_Wallet(t *testing.T) {
	t.Parallel()

	raw := `{"type":"Wallet","wallet_type":"Ethereum","public_key":"0x0304ab3cb2a7c7"}`
	var id Identity
	require.NoError(t, json.Unmarshal([]byte(raw), &id))
	assert.Equal(t, KindWallet, id.Kind)
	assert.Equal(t, WalletEthereum, id.WalletType)

	out, err := json.Marshal(id)
	require.NoError(t, err)
	var back Identity
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, id.Equal(back))
}

func TestIdentity_UnmarshalJSON_RejectsMissingFields(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"type":"Wallet","wallet_type":"Ethereum"}`,
		`{"type":"WebAuthn"}`,
		`{"type":"OIDC","issuer":"https://accounts.google.com","client_id":"abc"}`,
		`{"type":"Account"}`,
		`{"type":"Bogus"}`,
	}
	for _, raw := range cases {
		var id Identity
		assert.Error(t, json.Unmarshal([]byte(raw), &id), raw)
	}
}

func TestIdentity_Equal_WebAuthnPermissive(t *testing.T) {
	t.Parallel()

	withKey := Identity{Kind: KindWebAuthn, KeyID: "key-1", CompressedPublicKey: strPtr("0xaa")}
	withoutKey := Identity{Kind: KindWebAuthn, KeyID: "key-1"}
	assert.True(t, withKey.Equal(withoutKey), "missing compressed key on either side should still match on key_id")
	assert.True(t, withoutKey.Equal(withKey))

	differentKey := Identity{Kind: KindWebAuthn, KeyID: "key-1", CompressedPublicKey: strPtr("0xbb")}
	assert.False(t, withKey.Equal(differentKey), "diverging compressed keys must not be treated as equal")

	differentKeyID := Identity{Kind: KindWebAuthn, KeyID: "key-2"}
	assert.False(t, withKey.Equal(differentKeyID))
}

func TestIdentity_Equal_OIDCComparesSub(t *testing.T) {
	t.Parallel()

	a := Identity{Kind: KindOIDC, Issuer: "iss", ClientID: "cid", Sub: strPtr("sub-1")}
	b := Identity{Kind: KindOIDC, Issuer: "iss", ClientID: "cid", Sub: strPtr("sub-1")}
	assert.True(t, a.Equal(b))

	c := Identity{Kind: KindOIDC, Issuer: "iss", ClientID: "cid", Sub: strPtr("sub-2")}
	assert.False(t, a.Equal(c))
}

func TestIdentity_Path_Ethereum(t *testing.T) {
	t.Parallel()

	// Uncompressed secp256k1 generator point, a fixed deterministic vector.
	id := Identity{
		Kind:       KindWallet,
		WalletType: WalletEthereum,
		PublicKey:  "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
	}
	path, err := id.Path()
	require.NoError(t, err)
	assert.Len(t, path, 42) // "0x" + 40 hex chars
	assert.Regexp(t, "^0x[0-9a-f]{40}$", path)
}

func TestIdentity_Path_SolanaIsPublicKeyVerbatim(t *testing.T) {
	t.Parallel()

	id := Identity{Kind: KindWallet, WalletType: WalletSolana, PublicKey: "4yrrTFWWVUdbr1AZz9o7D4CfRmZThTqtfzyQ7KojUb8u"}
	path, err := id.Path()
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey, path)
}

func TestIdentity_Path_OIDCPrefersSubOverEmail(t *testing.T) {
	t.Parallel()

	id := Identity{
		Kind:     KindOIDC,
		Issuer:   "https://accounts.google.com",
		ClientID: "client-abc",
		Email:    strPtr("user@example.com"),
		Sub:      strPtr("sub-123"),
	}
	path, err := id.Path()
	require.NoError(t, err)
	assert.Equal(t, "oidc/https://accounts.google.com/client-abc/sub-123", path)
}

func TestIdentity_Path_WebAuthnRequiresCompressedKey(t *testing.T) {
	t.Parallel()

	id := Identity{Kind: KindWebAuthn, KeyID: "key-1"}
	_, err := id.Path()
	assert.Error(t, err)

	withKey := Identity{Kind: KindWebAuthn, KeyID: "key-1", CompressedPublicKey: strPtr("0xaabb")}
	path, err := withKey.Path()
	require.NoError(t, err)
	assert.Equal(t, "0xaabb", path)
}

func TestIdentityWithPermissions_CanActAs(t *testing.T) {
	t.Parallel()

	noPerms := IdentityWithPermissions{Identity: Identity{Kind: KindAccount, AccountID: "a.near"}}
	assert.False(t, noPerms.CanActAs())

	disabled := IdentityWithPermissions{
		Identity:    Identity{Kind: KindAccount, AccountID: "a.near"},
		Permissions: &Permissions{EnableActAs: false},
	}
	assert.False(t, disabled.CanActAs())

	enabled := IdentityWithPermissions{
		Identity:    Identity{Kind: KindAccount, AccountID: "a.near"},
		Permissions: &Permissions{EnableActAs: true},
	}
	assert.True(t, enabled.CanActAs())
}

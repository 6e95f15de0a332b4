package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aptos-labs/authcore/internal/canonical"
	"github.com/aptos-labs/authcore/internal/identity"
	"github.com/aptos-labs/authcore/internal/relay"
	"github.com/stretchr/testify/require"
)

// TestDispatcher_Auth_AddIdentityWithAuth exercises spec §4.8's double
// authentication: the outer op authenticates the account holder, the inner
// Auth authenticates the new identity's consent to be added with
// enable_act_as permission.
func TestDispatcher_Auth_AddIdentityWithAuth(t *testing.T) {
	t.Parallel()
	store, ownerKey := newAccountWithEthWallet(t)
	d := buildDispatcher(store)

	newKey := newEthSigner(t)
	newIdentity := identity.Identity{Kind: identity.KindWallet, WalletType: identity.WalletEthereum, PublicKey: "0x" + newKey.compressedHex}
	perms := &identity.Permissions{EnableActAs: true}

	innerMsg, err := canonical.Marshal(innerAddIdentityAuthMessage{
		AccountID:   "alice.near",
		Nonce:       "0", // account.nonce - 1; account starts at nonce 0, outer bump makes it 1.
		Action:      string(ActionAddIdentityWithAuth),
		Permissions: &identityPermissionsRaw{EnableActAs: true},
	})
	require.NoError(t, err)
	innerSig := sign(t, newKey, string(innerMsg))
	innerCreds, err := json.Marshal(map[string]string{"signature": innerSig})
	require.NoError(t, err)

	action := Action{
		Kind: ActionAddIdentityWithAuth,
		AddWithAuth: AddIdentityWithAuthPayload{
			IdentityWithPermissions: identity.IdentityWithPermissions{Identity: newIdentity, Permissions: perms},
			Auth:                    Auth{Identity: newIdentity, Credentials: innerCreds},
		},
	}
	op := makeUserOp(t, ownerKey, "alice.near", 0, action)

	result, err := d.Auth(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, ActionAddIdentityWithAuth, result.Action)

	ids, ok := store.ListIdentities("alice.near")
	require.True(t, ok)
	require.Len(t, ids, 2)
	require.True(t, ids[1].CanActAs())
}

func TestDispatcher_Auth_AddIdentityWithAuth_RejectsWrongInnerSignature(t *testing.T) {
	t.Parallel()
	store, ownerKey := newAccountWithEthWallet(t)
	d := buildDispatcher(store)

	newKey := newEthSigner(t)
	attackerKey := newEthSigner(t)
	newIdentity := identity.Identity{Kind: identity.KindWallet, WalletType: identity.WalletEthereum, PublicKey: "0x" + newKey.compressedHex}

	innerMsg, err := canonical.Marshal(innerAddIdentityAuthMessage{
		AccountID:   "alice.near",
		Nonce:       "0",
		Action:      string(ActionAddIdentityWithAuth),
		Permissions: &identityPermissionsRaw{EnableActAs: true},
	})
	require.NoError(t, err)
	// Signed by the wrong key: the new identity never consented.
	innerSig := sign(t, attackerKey, string(innerMsg))
	innerCreds, err := json.Marshal(map[string]string{"signature": innerSig})
	require.NoError(t, err)

	action := Action{
		Kind: ActionAddIdentityWithAuth,
		AddWithAuth: AddIdentityWithAuthPayload{
			IdentityWithPermissions: identity.IdentityWithPermissions{Identity: newIdentity, Permissions: &identity.Permissions{EnableActAs: true}},
			Auth:                    Auth{Identity: newIdentity, Credentials: innerCreds},
		},
	}
	op := makeUserOp(t, ownerKey, "alice.near", 0, action)

	_, err = d.Auth(context.Background(), op)
	require.Error(t, err)
	ae, ok := err.(*AuthError)
	require.True(t, ok)
	require.Equal(t, KindCryptoVerify, ae.Kind)
}

// TestDispatcher_Auth_Sign exercises the Sign action's handoff to C9: the
// effective identity's path is derived and the relay builds one call per
// payload.
func TestDispatcher_Auth_Sign(t *testing.T) {
	t.Parallel()
	store, priv := newAccountWithEthWallet(t)
	d := buildDispatcher(store)

	action := Action{
		Kind: ActionSign,
		SignPayloads: relay.SignPayloadsRequest{
			ContractID: "signer.near",
			Payloads: []relay.Payload{
				{Payload: []byte{1, 2, 3}, Path: "p0", KeyVersion: 0},
				{Payload: []byte{4, 5, 6}, Path: "p1", KeyVersion: 0},
			},
		},
	}
	op := makeUserOp(t, priv, "alice.near", 0, action)

	result, err := d.Auth(context.Background(), op)
	require.NoError(t, err)
	require.Len(t, result.RelayCalls, 2)
	for _, call := range result.RelayCalls {
		require.Contains(t, call.DerivedPath, "alice.near,0x")
	}
}

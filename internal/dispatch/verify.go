package dispatch

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aptos-labs/authcore/internal/identity"
	"github.com/aptos-labs/authcore/internal/verify/ed25519"
	"github.com/aptos-labs/authcore/internal/verify/oidc"
	"github.com/aptos-labs/authcore/internal/verify/p256"
	"github.com/aptos-labs/authcore/internal/verify/secp256k1"
)

// CredentialVerifier turns one identity's opaque wire credentials into a
// verdict over signedMessage. Decode errors are reported through the bool
// return (false), matching every C2-C5 verifier's own "malformed input
// means reject, not fault" contract; the error return is reserved for
// conditions the §7 taxonomy treats as distinct from a plain crypto
// rejection (challenge binding, missing key material).
type CredentialVerifier interface {
	Verify(signedMessage []byte, id identity.Identity, credentials json.RawMessage) (bool, error)
}

// VerifierRegistry routes an identity.Kind to the CredentialVerifier that
// handles it — the in-process equivalent of the original NEAR contract's
// `auth_contracts: Map<String, ContractId>` registry that set_auth_contract
// updates (spec §4.9 Open design note; SPEC_FULL.md "Multi-contract auth
// dispatch"). Go has no cross-contract promise chaining, so this registry
// holds swappable verifier implementations directly rather than contract
// ids.
type VerifierRegistry struct {
	verifiers map[identity.Kind]CredentialVerifier
}

// NewVerifierRegistry returns a registry with the three built-in verifiers
// (Wallet, covering Ethereum and Solana; WebAuthn; OIDC) already registered
// against their identity kinds. The reserved Account kind has no verifier.
func NewVerifierRegistry(keyStore *oidc.KeyStore) *VerifierRegistry {
	return &VerifierRegistry{
		verifiers: map[identity.Kind]CredentialVerifier{
			identity.KindWallet:   walletVerifier{},
			identity.KindWebAuthn: webAuthnVerifier{},
			identity.KindOIDC:     oidcVerifier{store: keyStore},
		},
	}
}

// SetAuthContract overrides the verifier registered for kind, the in-process
// analogue of the external interface's privileged set_auth_contract(kind,
// contract_id) operation (spec §6).
func (r *VerifierRegistry) SetAuthContract(kind identity.Kind, v CredentialVerifier) {
	r.verifiers[kind] = v
}

func (r *VerifierRegistry) verifierFor(kind identity.Kind) (CredentialVerifier, error) {
	v, ok := r.verifiers[kind]
	if !ok {
		return nil, fmt.Errorf("dispatch: no verifier registered for identity kind %q", kind)
	}
	return v, nil
}

// walletCredentials is the Wallet variant's credential payload shape
// (spec §6): a single signature field, Ethereum hex or Solana
// base58/base64 depending on the identity's wallet_type.
type walletCredentials struct {
	Signature string `json:"signature"`
}

type walletVerifier struct{}

func (walletVerifier) Verify(signedMessage []byte, id identity.Identity, credentials json.RawMessage) (bool, error) {
	var creds walletCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return false, nil
	}

	switch id.WalletType {
	case identity.WalletEthereum:
		return secp256k1.Verify(string(signedMessage), creds.Signature, id.PublicKey), nil
	case identity.WalletSolana:
		return ed25519.Verify(string(signedMessage), creds.Signature, id.PublicKey), nil
	default:
		return false, fmt.Errorf("dispatch: unknown wallet_type %q", id.WalletType)
	}
}

// webAuthnCredentials is the WebAuthn variant's credential payload shape.
type webAuthnCredentials struct {
	Signature         string `json:"signature"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientData        string `json:"client_data"`
}

type clientDataJSON struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type webAuthnVerifier struct{}

// Verify performs both the C2 signature check AND the challenge-binding
// rule spec §4.2 explicitly leaves to the caller: clientData.challenge
// must equal base64url_nopad(sha256(signedMessage)).
func (webAuthnVerifier) Verify(signedMessage []byte, id identity.Identity, credentials json.RawMessage) (bool, error) {
	var creds webAuthnCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return false, nil
	}
	if id.CompressedPublicKey == nil {
		return false, authErr(KindInputShape, "webauthn identity missing compressed_public_key")
	}

	var cd clientDataJSON
	if err := json.Unmarshal([]byte(creds.ClientData), &cd); err != nil {
		return false, nil
	}
	expectedDigest := sha256.Sum256(signedMessage)
	expectedChallenge := base64.RawURLEncoding.EncodeToString(expectedDigest[:])
	if cd.Challenge != expectedChallenge {
		return false, authErr(KindChallengeBinding, "Challenge mismatch")
	}

	ok := p256.VerifyAssertion(p256.WebAuthnData{
		SignatureHex:         creds.Signature,
		AuthenticatorDataHex: creds.AuthenticatorData,
		ClientDataJSON:       creds.ClientData,
	}, *id.CompressedPublicKey)
	return ok, nil
}

// oidcCredentials is the OIDC variant's credential payload shape.
type oidcCredentials struct {
	Token string `json:"token"`
}

type oidcVerifier struct {
	store *oidc.KeyStore
}

func (v oidcVerifier) Verify(signedMessage []byte, id identity.Identity, credentials json.RawMessage) (bool, error) {
	var creds oidcCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return false, nil
	}

	ok := oidc.Verify(
		oidc.ValidationData{Token: creds.Token, Message: string(signedMessage)},
		oidc.Authenticator{Issuer: id.Issuer, ClientID: id.ClientID, Email: id.Email, Sub: id.Sub},
		v.store,
	)
	return ok, nil
}

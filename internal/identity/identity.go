package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Kind is the closed-world identity variant discriminant (spec §3).
type Kind string

const (
	KindWallet   Kind = "Wallet"
	KindWebAuthn Kind = "WebAuthn"
	KindOIDC     Kind = "OIDC"
	KindAccount  Kind = "Account" // reserved; unimplemented in the verifier.
)

// WalletType names the curve/ecosystem a Wallet identity belongs to.
type WalletType string

const (
	WalletEthereum WalletType = "Ethereum"
	WalletSolana   WalletType = "Solana"
)

// Identity is the tagged sum of the four credential variants an account may
// attach. Only the fields relevant to Kind are populated; the rest are the
// zero value. This mirrors how user_op.auth.identity arrives over the wire:
// one JSON object with a discriminant and variant-specific fields, not a Go
// interface hierarchy, because the set of variants is closed and the wire
// shape is fixed by spec.md §6.
type Identity struct {
	Kind Kind `json:"-"`

	// Wallet fields.
	WalletType WalletType `json:"wallet_type,omitempty"`
	PublicKey  string     `json:"public_key,omitempty"`

	// WebAuthn fields.
	KeyID               string  `json:"key_id,omitempty"`
	CompressedPublicKey *string `json:"compressed_public_key,omitempty"`

	// OIDC fields.
	Issuer   string  `json:"issuer,omitempty"`
	ClientID string  `json:"client_id,omitempty"`
	Email    *string `json:"email,omitempty"`
	Sub      *string `json:"sub,omitempty"`

	// Account fields.
	AccountID string `json:"account_id,omitempty"`
}

// wireIdentity is the JSON-on-the-wire shape: a discriminated union with an
// explicit "type" tag next to the variant payload, the same encoding every
// identity fixture in spec.md §8 uses.
type wireIdentity struct {
	Type                string  `json:"type"`
	WalletType          string  `json:"wallet_type,omitempty"`
	PublicKey           string  `json:"public_key,omitempty"`
	KeyID               string  `json:"key_id,omitempty"`
	CompressedPublicKey *string `json:"compressed_public_key,omitempty"`
	Issuer              string  `json:"issuer,omitempty"`
	ClientID            string  `json:"client_id,omitempty"`
	Email               *string `json:"email,omitempty"`
	Sub                 *string `json:"sub,omitempty"`
	AccountID           string  `json:"account_id,omitempty"`
}

// MarshalJSON renders the identity in its wire shape.
func (i Identity) MarshalJSON() ([]byte, error) {
	w := wireIdentity{
		Type:                string(i.Kind),
		WalletType:          string(i.WalletType),
		PublicKey:           i.PublicKey,
		KeyID:               i.KeyID,
		CompressedPublicKey: i.CompressedPublicKey,
		Issuer:              i.Issuer,
		ClientID:            i.ClientID,
		Email:               i.Email,
		Sub:                 i.Sub,
		AccountID:           i.AccountID,
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses an identity from its wire shape and validates the
// per-variant required fields (spec §3).
func (i *Identity) UnmarshalJSON(data []byte) error {
	var w wireIdentity
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	switch Kind(w.Type) {
	case KindWallet:
		if w.WalletType != string(WalletEthereum) && w.WalletType != string(WalletSolana) {
			return fmt.Errorf("identity: unknown wallet_type %q", w.WalletType)
		}
		if w.PublicKey == "" {
			return fmt.Errorf("identity: wallet identity missing public_key")
		}
		*i = Identity{Kind: KindWallet, WalletType: WalletType(w.WalletType), PublicKey: w.PublicKey}
	case KindWebAuthn:
		if w.KeyID == "" {
			return fmt.Errorf("identity: webauthn identity missing key_id")
		}
		*i = Identity{Kind: KindWebAuthn, KeyID: w.KeyID, CompressedPublicKey: w.CompressedPublicKey}
	case KindOIDC:
		if w.Issuer == "" || w.ClientID == "" {
			return fmt.Errorf("identity: oidc identity missing issuer/client_id")
		}
		if w.Email == nil && w.Sub == nil {
			return fmt.Errorf("identity: oidc identity requires email and/or sub")
		}
		*i = Identity{Kind: KindOIDC, Issuer: w.Issuer, ClientID: w.ClientID, Email: w.Email, Sub: w.Sub}
	case KindAccount:
		if w.AccountID == "" {
			return fmt.Errorf("identity: account identity missing account_id")
		}
		*i = Identity{Kind: KindAccount, AccountID: w.AccountID}
	default:
		return fmt.Errorf("identity: unknown type %q", w.Type)
	}
	return nil
}

// Equal implements spec §4.6's permissive WebAuthn equality: two WebAuthn
// identities match on key_id alone when either side lacks a compressed
// key, but diverge if both carry one and it differs. Wallet public keys
// compare case-insensitively; OIDC and Account identities compare field by
// field.
func (i Identity) Equal(other Identity) bool {
	if i.Kind != other.Kind {
		return false
	}
	switch i.Kind {
	case KindWallet:
		return i.WalletType == other.WalletType && strings.EqualFold(i.PublicKey, other.PublicKey)
	case KindWebAuthn:
		if i.KeyID != other.KeyID {
			return false
		}
		if i.CompressedPublicKey == nil || other.CompressedPublicKey == nil {
			return true
		}
		return strings.EqualFold(*i.CompressedPublicKey, *other.CompressedPublicKey)
	case KindOIDC:
		if i.Issuer != other.Issuer || i.ClientID != other.ClientID {
			return false
		}
		return ptrEq(i.Sub, other.Sub) && ptrEq(i.Email, other.Email)
	case KindAccount:
		return i.AccountID == other.AccountID
	default:
		return false
	}
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Path projects an identity to the string used as the remote signer's
// derivation path (spec §3 "Derivation path"). Two identities collide on
// path only if they map to the same underlying key material; this is
// intentional, not a hash collision to guard against.
func (i Identity) Path() (string, error) {
	switch i.Kind {
	case KindWallet:
		switch i.WalletType {
		case WalletEthereum:
			return ethereumPath(i.PublicKey)
		case WalletSolana:
			return i.PublicKey, nil
		default:
			return "", fmt.Errorf("identity: unknown wallet_type %q", i.WalletType)
		}
	case KindWebAuthn:
		if i.CompressedPublicKey == nil {
			return "", fmt.Errorf("identity: webauthn identity missing compressed_public_key for path derivation")
		}
		return *i.CompressedPublicKey, nil
	case KindOIDC:
		subOrEmail, err := i.subOrEmail()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("oidc/%s/%s/%s", i.Issuer, i.ClientID, subOrEmail), nil
	case KindAccount:
		return i.AccountID, nil
	default:
		return "", fmt.Errorf("identity: unknown kind %q", i.Kind)
	}
}

// subOrEmail returns Sub when present, else Email, matching the "sub takes
// precedence when both present" rule spec §3 states for the OIDC variant.
func (i Identity) subOrEmail() (string, error) {
	if i.Sub != nil {
		return *i.Sub, nil
	}
	if i.Email != nil {
		return *i.Email, nil
	}
	return "", fmt.Errorf("identity: oidc identity has neither sub nor email")
}

// ethereumPath derives the 0x-prefixed 20-byte Ethereum-style address from
// an uncompressed or compressed secp256k1 public key:
// 0x + lower-hex(keccak256(uncompressed_pubkey[1:])[12:]).
func ethereumPath(pubKeyHex string) (string, error) {
	raw, err := decodeHex(pubKeyHex)
	if err != nil {
		return "", fmt.Errorf("identity: decode ethereum public key: %w", err)
	}

	var uncompressed []byte
	switch len(raw) {
	case 65:
		uncompressed = raw
	case 33:
		pub, err := ethcrypto.DecompressPubkey(raw)
		if err != nil {
			return "", fmt.Errorf("identity: decompress ethereum public key: %w", err)
		}
		uncompressed = ethcrypto.FromECDSAPub(pub)
	default:
		return "", fmt.Errorf("identity: ethereum public key must be 33 or 65 bytes, got %d", len(raw))
	}

	digest := ethcrypto.Keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(digest[12:]), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// Permissions is attached to an IdentityWithPermissions. A nil Permissions
// means "full access" (spec §3); EnableActAs governs whether the identity
// may be named as act_as by a different authenticator on the same account.
type Permissions struct {
	EnableActAs bool `json:"enable_act_as"`
}

// IdentityWithPermissions pairs an Identity with its optional Permissions.
type IdentityWithPermissions struct {
	Identity    Identity     `json:"identity"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

// CanActAs reports whether this identity may be used as an act_as delegate:
// true only when Permissions is present and explicitly enables it. Absent
// permissions means full access to the account directly, but NOT implicit
// delegation rights for other authenticators (spec §4.7).
func (iwp IdentityWithPermissions) CanActAs() bool {
	return iwp.Permissions != nil && iwp.Permissions.EnableActAs
}

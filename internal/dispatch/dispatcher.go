package dispatch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/aptos-labs/authcore/internal/accountstore"
	"github.com/aptos-labs/authcore/internal/canonical"
	"github.com/aptos-labs/authcore/internal/identity"
	"github.com/aptos-labs/authcore/internal/relay"
	"github.com/aptos-labs/authcore/internal/telemetry"
	"github.com/google/uuid"
)

// Result is what a successful auth() call hands back: which action ran,
// and (for Sign) the outbound signing calls the relay emitted.
type Result struct {
	AccountID  string
	Action     ActionKind
	RelayCalls []relay.SigningCall
}

// Dispatcher is the C8 operation dispatcher: it owns no state of its own
// beyond references to the account store (C7), the verifier registry
// (C2-C5 router), and the signing relay (C9).
type Dispatcher struct {
	store    *accountstore.Store
	verifier *VerifierRegistry
	caller   relay.Caller
	telem    *telemetry.Instrumentation
}

// New builds a Dispatcher. telem may be nil, in which case Auth records no
// traces or metrics.
func New(store *accountstore.Store, verifier *VerifierRegistry, caller relay.Caller, telem *telemetry.Instrumentation) *Dispatcher {
	return &Dispatcher{store: store, verifier: verifier, caller: caller, telem: telem}
}

// Auth runs the full auth(userOp) pipeline of spec §4.8. A non-nil *AuthError
// means no durable state changed beyond, at most, the account's consumed
// nonce.
func (d *Dispatcher) Auth(ctx context.Context, op UserOp) (Result, error) {
	if d.telem == nil {
		return d.runPipeline(ctx, op)
	}

	requestID := uuid.NewString()
	ctx, end := d.telem.StartAuth(ctx, op.Transaction.AccountID, requestID)
	result, err := d.runPipeline(ctx, op)
	end(err)
	return result, err
}

func (d *Dispatcher) runPipeline(ctx context.Context, op UserOp) (Result, error) {
	accountID := op.Transaction.AccountID

	// VALIDATE
	account, ok := d.store.GetAccountByID(accountID)
	if !ok {
		return Result{}, authErr(KindMembership, "Account not found")
	}
	if !account.HasIdentity(op.Auth.Identity) {
		return Result{}, authErr(KindMembership, "Identity not found in account")
	}
	if op.Transaction.Nonce == nil || op.Transaction.Nonce.Cmp(account.Nonce) != 0 {
		return Result{}, authErr(KindReplay, "Nonce mismatch")
	}
	if op.ActAs != nil {
		iwp, ok := account.IdentityWithPermissions(*op.ActAs)
		if !ok {
			return Result{}, authErr(KindMembership, "Identity not found in account")
		}
		if !iwp.CanActAs() {
			return Result{}, authErr(KindPermission, "act_as identity lacks enable_act_as permission")
		}
	}

	// NONCE_BUMP: consume the nonce before the verification round-trip so a
	// failed or lost verification still advances it (replay safety).
	validatedNonce, err := d.store.IncrementNonce(accountID)
	if err != nil {
		return Result{}, authErr(KindMembership, "Account not found")
	}
	if validatedNonce.Cmp(op.Transaction.Nonce) != 0 {
		// A concurrent operation consumed this nonce after VALIDATE read it.
		return Result{}, authErr(KindReplay, "Nonce mismatch")
	}

	// INJECT_KEY
	authIdentity := injectWebAuthnKey(op.Auth.Identity, account)

	// VERIFY_CREDENTIALS
	signedMessage, err := canonical.Marshal(op.Transaction)
	if err != nil {
		return Result{}, authErr(KindInputShape, fmt.Sprintf("cannot canonicalize transaction: %v", err))
	}

	ok, err = d.verifyCredential(ctx, authIdentity, op.Auth.Credentials, signedMessage)
	if err != nil {
		if ae, isAuthErr := err.(*AuthError); isAuthErr {
			return Result{}, ae
		}
		return Result{}, authErr(KindHostError, "Error validating authentication")
	}
	if !ok {
		return Result{}, authErr(KindCryptoVerify, "Authentication failed")
	}

	// APPLY_ACTION
	return d.applyAction(ctx, accountID, account, authIdentity, op, validatedNonce)
}

// injectWebAuthnKey applies spec §4.6: a client cannot surface the
// compressed public key at sign time, so if the authenticating identity is
// WebAuthn and is missing it, copy it in from the stored identity matching
// key_id.
func injectWebAuthnKey(id identity.Identity, account *accountstore.Account) identity.Identity {
	if id.Kind != identity.KindWebAuthn || id.CompressedPublicKey != nil {
		return id
	}
	stored, ok := account.IdentityWithPermissions(id)
	if !ok || stored.Identity.CompressedPublicKey == nil {
		return id
	}
	id.CompressedPublicKey = stored.Identity.CompressedPublicKey
	return id
}

func (d *Dispatcher) verifyCredential(ctx context.Context, id identity.Identity, credentials []byte, signedMessage []byte) (bool, error) {
	v, err := d.verifier.verifierFor(id.Kind)
	if err != nil {
		return false, authErr(KindInputShape, "Invalid credentials data")
	}
	if d.telem != nil {
		var verr error
		result := d.telem.TraceVerify(ctx, string(id.Kind), func(context.Context) bool {
			var ok bool
			ok, verr = v.Verify(signedMessage, id, credentials)
			return ok
		})
		return result, verr
	}
	return v.Verify(signedMessage, id, credentials)
}

func (d *Dispatcher) applyAction(ctx context.Context, accountID string, account *accountstore.Account, authIdentity identity.Identity, op UserOp, validatedNonce *big.Int) (Result, error) {
	action := op.Transaction.Action

	switch action.Kind {
	case ActionRemoveAccount:
		if err := d.store.RemoveAccount(accountID); err != nil {
			return Result{}, authErr(KindMembership, "Account not found")
		}
		return Result{AccountID: accountID, Action: action.Kind}, nil

	case ActionAddIdentity:
		if err := d.store.AddIdentity(accountID, identity.IdentityWithPermissions{Identity: action.Identity}); err != nil {
			return Result{}, authErr(KindPermission, err.Error())
		}
		return Result{AccountID: accountID, Action: action.Kind}, nil

	case ActionAddIdentityWithAuth:
		return d.applyAddIdentityWithAuth(ctx, accountID, action.AddWithAuth, validatedNonce)

	case ActionRemoveIdentity:
		if err := d.store.RemoveIdentity(accountID, action.Identity); err != nil {
			return Result{}, authErr(KindMembership, "Identity not found in account")
		}
		return Result{AccountID: accountID, Action: action.Kind}, nil

	case ActionSign:
		effective := authIdentity
		if op.ActAs != nil {
			effective = *op.ActAs
		}
		path, err := effective.Path()
		if err != nil {
			return Result{}, authErr(KindInputShape, err.Error())
		}
		calls, err := relay.Build(accountID, path, action.SignPayloads, new(big.Int))
		if err != nil {
			return Result{}, authErr(KindInputShape, err.Error())
		}
		if d.caller != nil {
			for _, call := range calls {
				if err := d.caller.Call(call); err != nil {
					return Result{}, authErr(KindHostError, "Error validating authentication")
				}
			}
		}
		return Result{AccountID: accountID, Action: action.Kind, RelayCalls: calls}, nil

	default:
		return Result{}, authErr(KindInputShape, fmt.Sprintf("unknown action %q", action.Kind))
	}
}

// innerAddIdentityAuthMessage is the exact JSON shape the new identity's
// consent signature covers (spec §4.8): the nonce is account.nonce-1
// because the outer NONCE_BUMP has already incremented it by the time
// APPLY_ACTION runs, and validatedNonce is that pre-bump value.
type innerAddIdentityAuthMessage struct {
	AccountID   string                  `json:"account_id"`
	Nonce       string                  `json:"nonce"`
	Action      string                  `json:"action"`
	Permissions *identityPermissionsRaw `json:"permissions"`
}

type identityPermissionsRaw struct {
	EnableActAs bool `json:"enable_act_as"`
}

func (d *Dispatcher) applyAddIdentityWithAuth(ctx context.Context, accountID string, payload AddIdentityWithAuthPayload, validatedNonce *big.Int) (Result, error) {
	var perms *identityPermissionsRaw
	if payload.IdentityWithPermissions.Permissions != nil {
		perms = &identityPermissionsRaw{EnableActAs: payload.IdentityWithPermissions.Permissions.EnableActAs}
	}
	innerMessage, err := canonical.Marshal(innerAddIdentityAuthMessage{
		AccountID:   accountID,
		Nonce:       validatedNonce.String(),
		Action:      string(ActionAddIdentityWithAuth),
		Permissions: perms,
	})
	if err != nil {
		return Result{}, authErr(KindInputShape, fmt.Sprintf("cannot canonicalize inner auth message: %v", err))
	}

	newIdentity := payload.IdentityWithPermissions.Identity
	ok, err := d.verifyCredential(ctx, newIdentity, payload.Auth.Credentials, innerMessage)
	if err != nil {
		if ae, isAuthErr := err.(*AuthError); isAuthErr {
			return Result{}, ae
		}
		return Result{}, authErr(KindHostError, "Error validating authentication")
	}
	if !ok {
		return Result{}, authErr(KindCryptoVerify, "Authentication failed")
	}

	if err := d.store.AddIdentityWithAuth(accountID, payload.IdentityWithPermissions); err != nil {
		return Result{}, authErr(KindMembership, err.Error())
	}
	return Result{AccountID: accountID, Action: ActionAddIdentityWithAuth}, nil
}

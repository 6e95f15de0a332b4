package dispatch

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/aptos-labs/authcore/internal/identity"
	"github.com/aptos-labs/authcore/internal/relay"
)

// ActionKind names one of the five closed-world transaction actions (spec
// §3 "Transaction").
type ActionKind string

const (
	ActionRemoveAccount       ActionKind = "RemoveAccount"
	ActionAddIdentity         ActionKind = "AddIdentity"
	ActionAddIdentityWithAuth ActionKind = "AddIdentityWithAuth"
	ActionRemoveIdentity      ActionKind = "RemoveIdentity"
	ActionSign                ActionKind = "Sign"
)

// AddIdentityWithAuthPayload is the AddIdentityWithAuth(A) action payload:
// the identity (with whatever permissions, including enable_act_as) to add,
// plus an Auth proving that identity's own consent (spec §4.8's "double
// authentication").
type AddIdentityWithAuthPayload struct {
	IdentityWithPermissions identity.IdentityWithPermissions `json:"identity_with_permissions"`
	Auth                    Auth                             `json:"auth"`
}

// Action is the tagged sum of transaction actions. Only the field matching
// Kind is populated. The wire encoding follows the serde-derived enum shape
// the original NEAR contract produces: a unit variant serializes as a bare
// string, a tuple variant as a single-key object.
type Action struct {
	Kind ActionKind

	Identity     identity.Identity          // AddIdentity, RemoveIdentity
	AddWithAuth  AddIdentityWithAuthPayload // AddIdentityWithAuth
	SignPayloads relay.SignPayloadsRequest  // Sign
}

// MarshalJSON renders the action in its wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ActionRemoveAccount:
		return json.Marshal(string(a.Kind))
	case ActionAddIdentity, ActionRemoveIdentity:
		return json.Marshal(map[string]identity.Identity{string(a.Kind): a.Identity})
	case ActionAddIdentityWithAuth:
		return json.Marshal(map[string]AddIdentityWithAuthPayload{string(a.Kind): a.AddWithAuth})
	case ActionSign:
		return json.Marshal(map[string]relay.SignPayloadsRequest{string(a.Kind): a.SignPayloads})
	default:
		return nil, fmt.Errorf("dispatch: unknown action kind %q", a.Kind)
	}
}

// UnmarshalJSON parses an action from its wire shape.
func (a *Action) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if ActionKind(asString) != ActionRemoveAccount {
			return fmt.Errorf("dispatch: unknown unit action %q", asString)
		}
		*a = Action{Kind: ActionRemoveAccount}
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return fmt.Errorf("dispatch: action is neither a string nor an object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("dispatch: action object must have exactly one key, got %d", len(asObject))
	}

	for key, payload := range asObject {
		switch ActionKind(key) {
		case ActionAddIdentity, ActionRemoveIdentity:
			var id identity.Identity
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("dispatch: %s payload: %w", key, err)
			}
			*a = Action{Kind: ActionKind(key), Identity: id}
		case ActionAddIdentityWithAuth:
			var payloadVal AddIdentityWithAuthPayload
			if err := json.Unmarshal(payload, &payloadVal); err != nil {
				return fmt.Errorf("dispatch: AddIdentityWithAuth payload: %w", err)
			}
			*a = Action{Kind: ActionAddIdentityWithAuth, AddWithAuth: payloadVal}
		case ActionSign:
			var req relay.SignPayloadsRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("dispatch: Sign payload: %w", err)
			}
			*a = Action{Kind: ActionSign, SignPayloads: req}
		default:
			return fmt.Errorf("dispatch: unknown action kind %q", key)
		}
	}
	return nil
}

// Transaction is the replay-safe unit of the operation pipeline (spec §3).
type Transaction struct {
	AccountID string
	Nonce     *big.Int
	Action    Action
}

type wireTransaction struct {
	AccountID string `json:"account_id"`
	Nonce     string `json:"nonce"`
	Action    Action `json:"action"`
}

// MarshalJSON renders Nonce as a decimal string, the convention NEAR-style
// JSON APIs use for values that may exceed a JSON number's safe integer
// range (spec §3: nonce is unsigned 128-bit).
func (t Transaction) MarshalJSON() ([]byte, error) {
	nonce := t.Nonce
	if nonce == nil {
		nonce = new(big.Int)
	}
	return json.Marshal(wireTransaction{AccountID: t.AccountID, Nonce: nonce.String(), Action: t.Action})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("dispatch: transaction: %w", err)
	}
	nonce, ok := new(big.Int).SetString(w.Nonce, 10)
	if !ok {
		return fmt.Errorf("dispatch: transaction: invalid nonce %q", w.Nonce)
	}
	*t = Transaction{AccountID: w.AccountID, Nonce: nonce, Action: w.Action}
	return nil
}

// Auth is a (identity, opaque credentials) pair: the authentication half of
// a UserOp, and also the shape of the inner consent signature an
// AddIdentityWithAuth action carries (spec §3, §4.8).
type Auth struct {
	Identity    identity.Identity `json:"identity"`
	Credentials json.RawMessage   `json:"credentials"`
}

// UserOp is the full signed operation submitted to auth() (spec §3).
type UserOp struct {
	Auth        Auth               `json:"auth"`
	ActAs       *identity.Identity `json:"act_as,omitempty"`
	Transaction Transaction        `json:"transaction"`
}

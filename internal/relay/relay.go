package relay

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GasPerSigningCall is the fixed gas allotment attached to every outbound
// signing call: 50 Tgas, expressed in gas units (1 Tgas = 10^12 gas).
const GasPerSigningCall uint64 = 50_000_000_000_000

// Payload is one signing request: a 32-byte digest to sign, the path
// segment specific to this payload (appended to the identity's own
// derivation path), and the signer key version to use.
type Payload struct {
	Payload    []byte `json:"payload"`
	Path       string `json:"path"`
	KeyVersion uint32 `json:"key_version"`
}

// SignPayloadsRequest is the Sign action's payload (spec §3, §4.9).
type SignPayloadsRequest struct {
	ContractID string    `json:"contract_id"`
	Payloads   []Payload `json:"payloads"`
}

// SigningCall is one outbound call this relay emits: everything the remote
// signer service needs to produce a derived signature for a single payload.
type SigningCall struct {
	RequestID   string
	ContractID  string
	DerivedPath string
	Payload     []byte
	KeyVersion  uint32
	Deposit     *big.Int
	Gas         uint64
}

// Caller issues the outbound calls a relay Build produces. It is the seam
// where the surrounding runtime's cross-contract promise chaining would
// attach; this package only constructs the calls, per spec.md's scope note
// that the remote signer service itself is an external collaborator.
type Caller interface {
	Call(call SigningCall) error
}

// Build turns req plus the effective identity's derivation path into one
// SigningCall per payload (spec §4.9):
//
//  1. derived = "{accountID},{identityPath},{payload.path}"
//  2. attachedDeposit is divided evenly across payloads, with any
//     remainder folded into the last call so no deposit is silently lost.
//  3. each call carries the fixed GasPerSigningCall allotment.
func Build(accountID, identityPath string, req SignPayloadsRequest, attachedDeposit *big.Int) ([]SigningCall, error) {
	if len(req.Payloads) == 0 {
		return nil, fmt.Errorf("relay: sign request has no payloads")
	}
	if attachedDeposit == nil {
		attachedDeposit = new(big.Int)
	}

	n := big.NewInt(int64(len(req.Payloads)))
	share, remainder := new(big.Int).QuoRem(attachedDeposit, n, new(big.Int))

	calls := make([]SigningCall, len(req.Payloads))
	for idx, p := range req.Payloads {
		deposit := new(big.Int).Set(share)
		if idx == len(req.Payloads)-1 {
			deposit.Add(deposit, remainder)
		}
		calls[idx] = SigningCall{
			RequestID:   uuid.NewString(),
			ContractID:  req.ContractID,
			DerivedPath: fmt.Sprintf("%s,%s,%s", accountID, identityPath, p.Path),
			Payload:     p.Payload,
			KeyVersion:  p.KeyVersion,
			Deposit:     deposit,
			Gas:         GasPerSigningCall,
		}
	}
	return calls, nil
}

// Dispatch builds the signing calls for req and issues each through caller,
// stopping at the first error. Partial failures beyond that point are the
// outer runtime's responsibility to retry (spec §4.9 "the relay itself is
// stateless").
func Dispatch(caller Caller, accountID, identityPath string, req SignPayloadsRequest, attachedDeposit *big.Int) error {
	calls, err := Build(accountID, identityPath, req, attachedDeposit)
	if err != nil {
		return err
	}
	for _, call := range calls {
		if err := caller.Call(call); err != nil {
			return fmt.Errorf("relay: signing call %s failed: %w", call.RequestID, err)
		}
	}
	return nil
}

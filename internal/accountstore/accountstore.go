package accountstore

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/aptos-labs/authcore/internal/identity"
)

// Sentinel errors, named after the §7 error taxonomy's "Membership" row.
// The dispatcher (C8) wraps these in *dispatch.AuthError to surface them as
// the host-visible rejection message spec.md describes as a "panic".
var (
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrIdentityNotFound  = errors.New("identity not found in account")
	ErrActAsRequiresAuth = errors.New("identity granting enable_act_as must be added via AddIdentityWithAuth")
)

// UsageRecorder is called with the signed delta in approximate storage
// bytes consumed by a mutation, charged to accountID. A nil recorder is a
// no-op; Store wires in a default no-op recorder so tests and simple
// embedders don't need one.
type UsageRecorder func(accountID string, deltaBytes int64)

// Account is one abstract account: an ordered, non-empty list of attached
// identities and a strictly monotone nonce.
type Account struct {
	Identities []identity.IdentityWithPermissions
	Nonce      *big.Int
}

func (a *Account) clone() *Account {
	out := &Account{Nonce: new(big.Int).Set(a.Nonce)}
	out.Identities = append(out.Identities, a.Identities...)
	return out
}

// indexOfIdentity returns the index of the first stored identity structurally
// equal (per identity.Identity.Equal, including the permissive WebAuthn
// rule) to id, or -1.
func (a *Account) indexOfIdentity(id identity.Identity) int {
	for i, iwp := range a.Identities {
		if iwp.Identity.Equal(id) {
			return i
		}
	}
	return -1
}

// HasIdentity reports whether id is a member of the account.
func (a *Account) HasIdentity(id identity.Identity) bool {
	return a.indexOfIdentity(id) >= 0
}

// IdentityWithPermissions returns the stored IdentityWithPermissions
// matching id, if any.
func (a *Account) IdentityWithPermissions(id identity.Identity) (identity.IdentityWithPermissions, bool) {
	idx := a.indexOfIdentity(id)
	if idx < 0 {
		return identity.IdentityWithPermissions{}, false
	}
	return a.Identities[idx], true
}

// Store is the process-wide account map plus the global max-nonce
// watermark. All methods are safe for concurrent use; per spec §5, callers
// are expected to guard operations on the same account id themselves (the
// dispatcher rejects an operation whose IncrementNonce result differs from
// the nonce it validated), but Store's own bookkeeping never corrupts
// under concurrent access to distinct accounts.
type Store struct {
	mu             sync.Mutex
	accounts       map[string]*Account
	globalMaxNonce *big.Int
	recordUsage    UsageRecorder
}

// New returns an empty store with the global max-nonce watermark at zero.
func New() *Store {
	return &Store{
		accounts:       make(map[string]*Account),
		globalMaxNonce: new(big.Int),
		recordUsage:    func(string, int64) {},
	}
}

// SetUsageRecorder installs recorder as the storage-usage accounting hook.
func (s *Store) SetUsageRecorder(recorder UsageRecorder) {
	if recorder == nil {
		recorder = func(string, int64) {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordUsage = recorder
}

// GlobalMaxNonce returns the current global max-nonce watermark.
func (s *Store) GlobalMaxNonce() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.globalMaxNonce)
}

// AddAccount creates accountID with a single initial identity. Its starting
// nonce is the current global max-nonce, not zero, so a resurrected account
// id can never replay a signature issued under a prior incarnation (spec
// §3 "Global max-nonce").
func (s *Store) AddAccount(accountID string, iwp identity.IdentityWithPermissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[accountID]; exists {
		return ErrAccountExists
	}
	acct := &Account{
		Identities: []identity.IdentityWithPermissions{iwp},
		Nonce:      new(big.Int).Set(s.globalMaxNonce),
	}
	s.accounts[accountID] = acct
	s.recordUsage(accountID, estimateSize(acct))
	return nil
}

// RemoveAccount deletes accountID outright, first folding its nonce into
// the global max-nonce watermark so a future resurrection starts at or
// above it.
func (s *Store) RemoveAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Nonce.Cmp(s.globalMaxNonce) > 0 {
		s.globalMaxNonce.Set(acct.Nonce)
	}
	delete(s.accounts, accountID)
	s.recordUsage(accountID, -estimateSize(acct))
	return nil
}

// AddIdentity appends iwp to accountID's identity list via the "direct" path
// (spec §4.7): an identity added this way can only be used BY the account,
// never as an act_as delegate, so granting enable_act_as through this
// method is rejected — callers must route through AddIdentityWithAuth,
// which requires the new identity to have signed its own consent.
func (s *Store) AddIdentity(accountID string, iwp identity.IdentityWithPermissions) error {
	if iwp.CanActAs() {
		return ErrActAsRequiresAuth
	}
	return s.appendIdentity(accountID, iwp)
}

// AddIdentityWithAuth appends iwp to accountID's identity list. Unlike
// AddIdentity, enable_act_as permissions are allowed here because the
// dispatcher (C8) has already verified the new identity's own Auth before
// calling this — the double-authentication spec.md §4.8 describes.
func (s *Store) AddIdentityWithAuth(accountID string, iwp identity.IdentityWithPermissions) error {
	return s.appendIdentity(accountID, iwp)
}

func (s *Store) appendIdentity(accountID string, iwp identity.IdentityWithPermissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	before := estimateSize(acct)
	acct.Identities = append(acct.Identities, iwp)
	s.recordUsage(accountID, estimateSize(acct)-before)
	return nil
}

// RemoveIdentity removes the identity structurally equal to id from
// accountID's list. When the list becomes empty, the account itself is
// removed — but WITHOUT bumping the global max-nonce, because identity
// churn is distinct from account churn (spec §4.7, §9).
func (s *Store) RemoveIdentity(accountID string, id identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	idx := acct.indexOfIdentity(id)
	if idx < 0 {
		return ErrIdentityNotFound
	}
	before := estimateSize(acct)
	acct.Identities = append(acct.Identities[:idx], acct.Identities[idx+1:]...)

	if len(acct.Identities) == 0 {
		delete(s.accounts, accountID)
		s.recordUsage(accountID, -before)
		return nil
	}
	s.recordUsage(accountID, estimateSize(acct)-before)
	return nil
}

// GetAccountByID returns a snapshot copy of accountID's account, or false if
// it does not exist. The copy is safe to read without holding the store
// lock; mutating it has no effect on stored state.
func (s *Store) GetAccountByID(accountID string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

// GetAccountByIdentity returns every account id whose identity list contains
// id, in a deterministic (sorted) order.
func (s *Store) GetAccountByIdentity(id identity.Identity) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for accountID, acct := range s.accounts {
		if acct.HasIdentity(id) {
			out = append(out, accountID)
		}
	}
	sort.Strings(out)
	return out
}

// ListAccountIDs returns every known account id, in sorted order.
func (s *Store) ListAccountIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.accounts))
	for accountID := range s.accounts {
		out = append(out, accountID)
	}
	sort.Strings(out)
	return out
}

// ListIdentities returns accountID's identities, or false if it does not
// exist.
func (s *Store) ListIdentities(accountID string) ([]identity.IdentityWithPermissions, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, false
	}
	out := make([]identity.IdentityWithPermissions, len(acct.Identities))
	copy(out, acct.Identities)
	return out, true
}

// IncrementNonce bumps accountID's nonce by one and returns the nonce the
// caller's operation was validated against (the pre-increment value). This
// is the C8 dispatcher's NONCE_BUMP step: it must happen before credential
// verification so a failed verification still consumes the nonce.
func (s *Store) IncrementNonce(accountID string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	validated := new(big.Int).Set(acct.Nonce)
	acct.Nonce.Add(acct.Nonce, big.NewInt(1))
	return validated, nil
}

// estimateSize approximates the marshaled footprint of an account for the
// storage-usage accounting hook; exact byte-for-byte accuracy is not
// required, only a consistent relative delta per mutation.
func estimateSize(acct *Account) int64 {
	const perIdentityOverhead = 96
	return int64(len(acct.Identities))*perIdentityOverhead + int64(len(acct.Nonce.Bytes())) + 16
}

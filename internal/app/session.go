package service

import (
	"sync"
	"time"

	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
)

// Advisory is the single user-visible message.
type Advisory struct {
	Kind     failure.Kind
	Message  string
	RaisedAt time.Time
}

// Session is the explicit per-wallet context shared by the guard, the
// synchronizer and the orchestrator.
type Session struct {
	mu sync.RWMutex

	wallet     model.Address
	connected  bool
	chainID    uint64
	registered bool
	profile    *model.BuilderProfile
	advisory   *Advisory
}

// NewSession returns a disconnected session.
func NewSession() *Session {
	return &Session{}
}

// SessionView is a consistent copy of the session state.
type SessionView struct {
	Wallet     model.Address
	Connected  bool
	ChainID    uint64
	Registered bool
	Profile    *model.BuilderProfile
	Advisory   *Advisory

	// Filled by the service from the orchestrator.
	Busy    bool
	Pending *model.PendingOperation
}

// View returns a copy of the whole session.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := SessionView{
		Wallet:     s.wallet,
		Connected:  s.connected,
		ChainID:    s.chainID,
		Registered: s.registered,
	}
	if s.profile != nil {
		p := s.profile.Clone()
		v.Profile = &p
	}
	if s.advisory != nil {
		a := *s.advisory
		v.Advisory = &a
	}
	return v
}

// Connect records a connection change. It reports whether the account
// differs from the previous one, in which case registration is reset
// until the next probe.
func (s *Session) Connect(wallet model.Address, connected bool, chainID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := wallet != s.wallet || connected != s.connected
	s.wallet = wallet
	s.connected = connected
	s.chainID = chainID
	if changed {
		s.registered = false
		s.profile = nil
	}
	return changed
}

// SetChainID updates the observed chain without touching the account.
func (s *Session) SetChainID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = id
}

// Wallet returns the connected wallet.
func (s *Session) Wallet() (model.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallet, s.connected
}

// Connected reports whether a wallet is connected.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Registered reports whether the connected wallet has a profile.
func (s *Session) Registered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// SetProfile marks the wallet registered with p, if p belongs to it.
func (s *Session) SetProfile(p model.BuilderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Wallet != s.wallet {
		return
	}
	cp := p.Clone()
	s.registered = true
	s.profile = &cp
}

// MarkRegistered flags registration before the profile has been re-read.
func (s *Session) MarkRegistered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = true
}

// MarkUnregistered records a NotFound probe.
func (s *Session) MarkUnregistered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = false
	s.profile = nil
}

// Raise shows the advisory for err, replacing whatever was shown.
func (s *Session) Raise(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advisory = &Advisory{Kind: failure.Classify(err), Message: failure.Message(err), RaisedAt: time.Now()}
}

// ClearNetwork removes the advisory only if it is the WrongNetwork one.
func (s *Session) ClearNetwork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advisory != nil && s.advisory.Kind == failure.WrongNetwork {
		s.advisory = nil
	}
}

// ClearForWrite drops a stale error when a new write starts. A WrongNetwork
// advisory stays until the guard clears it.
func (s *Session) ClearForWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advisory != nil && s.advisory.Kind != failure.WrongNetwork {
		s.advisory = nil
	}
}

// Dismiss clears whatever is shown.
func (s *Session) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advisory = nil
}

// Advisory returns the current advisory, if any.
func (s *Session) Advisory() (Advisory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.advisory == nil {
		return Advisory{}, false
	}
	return *s.advisory, true
}

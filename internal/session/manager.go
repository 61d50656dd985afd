package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/feedad/kilusi-bill-sub007/internal/credstore"
	"github.com/feedad/kilusi-bill-sub007/internal/gateway"
	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateAuthenticating   State = "authenticating"
	StateAuthenticated    State = "authenticated"
	StateSwitchingAccount State = "switching_account"
	StateExpired          State = "expired"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStaleSwitch is returned when a switch response arrives after a
	// newer switch has already been issued; the stale result is dropped.
	ErrStaleSwitch = errors.New("switch superseded")
	// ErrSwitchInFlight is returned when a switch is requested while a
	// previous switch is still awaiting its response. Callers serialize
	// switches; the manager does not queue them.
	ErrSwitchInFlight = errors.New("switch already in flight")
)

// Manager owns the customer session state machine. It mediates between the
// credential store and the remote auth gateway; it has no ambient global
// state and is injected into its consumers, which observe it through
// Subscribe rather than polling.
type Manager struct {
	gateway gateway.Gateway
	store   credstore.Store
	hub     *hub

	mu        sync.Mutex
	state     State
	current   models.Session
	switchGen uint64
}

func NewManager(gw gateway.Gateway, store credstore.Store) *Manager {
	return &Manager{
		gateway: gw,
		store:   store,
		hub:     newHub(),
		state:   StateUnauthenticated,
	}
}

// Init resumes a previously persisted session, if one is present and whole.
func (m *Manager) Init() {
	session, ok := m.store.Read()
	if !ok {
		return
	}
	m.mu.Lock()
	m.current = session
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.hub.broadcast(Event{Type: EventStateChanged, State: StateAuthenticated})
}

// Teardown closes all subscriber channels. The persisted session is left in
// place so the next Init can resume it.
func (m *Manager) Teardown() {
	m.hub.close()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, or ok=false when not authenticated.
func (m *Manager) Current() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated && m.state != StateSwitchingAccount {
		return models.Session{}, false
	}
	return m.current, true
}

// Token returns the current bearer token, or empty when not authenticated.
func (m *Manager) Token() string {
	session, ok := m.Current()
	if !ok {
		return ""
	}
	return session.Token
}

func (m *Manager) Subscribe() (string, <-chan Event) {
	return m.hub.subscribe()
}

func (m *Manager) Unsubscribe(id string) {
	m.hub.unsubscribe(id)
}

func (m *Manager) LoginWithCredentials(ctx context.Context, phone, secret string) (models.Session, error) {
	return m.login(func() (gateway.LoginResult, error) {
		return m.gateway.LoginWithCredentials(ctx, phone, secret)
	})
}

func (m *Manager) RequestOTP(ctx context.Context, phone string) error {
	return m.gateway.RequestOTP(ctx, phone)
}

func (m *Manager) VerifyOTP(ctx context.Context, phone, code string) (models.Session, error) {
	return m.login(func() (gateway.LoginResult, error) {
		return m.gateway.VerifyOTP(ctx, phone, code)
	})
}

func (m *Manager) LoginByPhoneOnly(ctx context.Context, phone string) (models.Session, error) {
	return m.login(func() (gateway.LoginResult, error) {
		return m.gateway.LoginByPhoneOnly(ctx, phone)
	})
}

// BootstrapFromToken establishes a session from an opaque token whose kind
// the caller cannot know: a resumed session token validates directly, a
// deep-link login token must be exchanged. Validation is attempted first;
// the exchange runs only if validation fails, and when both fail the
// exchange error is the one surfaced.
func (m *Manager) BootstrapFromToken(ctx context.Context, token string) (models.Session, error) {
	m.setState(StateAuthenticating)

	result, err := m.gateway.ValidateSessionToken(ctx, token)
	if err != nil {
		result, err = m.gateway.ExchangeLoginToken(ctx, token)
	}
	if err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, err
	}
	return m.applyLogin(result)
}

// SwitchAccount changes the active linked account. Switching to the account
// that is already active is a no-op with no network call. A failed switch
// leaves the previous session untouched, and a response that arrives after
// a newer switch was issued is dropped.
func (m *Manager) SwitchAccount(ctx context.Context, targetID string) (models.Session, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		state := m.state
		m.mu.Unlock()
		if state == StateSwitchingAccount {
			return models.Session{}, ErrSwitchInFlight
		}
		return models.Session{}, ErrNotAuthenticated
	}
	target := models.CustomerRecord{ID: models.FlexString(targetID)}
	if SameAccount(m.current.ActiveCustomer, target) {
		session := m.current
		m.mu.Unlock()
		return session, nil
	}
	m.switchGen++
	gen := m.switchGen
	token := m.current.Token
	m.state = StateSwitchingAccount
	m.mu.Unlock()

	result, err := m.gateway.SwitchAccount(ctx, token, targetID)

	m.mu.Lock()
	if gen != m.switchGen || m.state != StateSwitchingAccount {
		m.mu.Unlock()
		return models.Session{}, ErrStaleSwitch
	}
	if err != nil {
		m.state = StateAuthenticated
		session := m.current
		m.mu.Unlock()
		m.hub.broadcast(Event{Type: EventStateChanged, State: StateAuthenticated})
		return session, err
	}

	session := m.mergeSwitch(result)
	m.current = session
	m.state = StateAuthenticated
	m.mu.Unlock()

	if err := m.store.Write(session); err != nil {
		log.Printf("session persist: %v", err)
	}
	m.hub.broadcast(Event{Type: EventStateChanged, State: StateAuthenticated})
	return session, nil
}

// Refresh rotates the session token in place.
func (m *Manager) Refresh(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return models.Session{}, ErrNotAuthenticated
	}
	token := m.current.Token
	m.mu.Unlock()

	result, err := m.gateway.RefreshToken(ctx, token)
	if err != nil {
		m.mu.Lock()
		session := m.current
		m.mu.Unlock()
		return session, err
	}
	return m.applyLogin(result)
}

// Logout clears the session. It performs no network call and never fails
// from the caller's perspective.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.current = models.Session{}
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		log.Printf("session clear: %v", err)
	}
	m.hub.broadcast(Event{Type: EventStateChanged, State: StateUnauthenticated})
}

// Expire is the one-way transition taken when any authenticated request is
// rejected. It clears storage and emits a single auth-expired event; repeat
// calls before the next login are no-ops, so concurrent in-flight failures
// cannot cascade into repeated clears. Re-authentication starts a fresh
// session rather than resuming this one.
func (m *Manager) Expire(message string, status int) bool {
	m.mu.Lock()
	if m.state != StateAuthenticated && m.state != StateSwitchingAccount {
		m.mu.Unlock()
		return false
	}
	m.current = models.Session{}
	m.state = StateExpired
	m.switchGen++
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		log.Printf("session clear: %v", err)
	}
	m.hub.broadcast(Event{Type: EventAuthExpired, State: StateExpired, Message: message, Status: status})
	return true
}

func (m *Manager) login(call func() (gateway.LoginResult, error)) (models.Session, error) {
	m.setState(StateAuthenticating)
	result, err := call()
	if err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, err
	}
	return m.applyLogin(result)
}

func (m *Manager) applyLogin(result gateway.LoginResult) (models.Session, error) {
	active := result.Customer
	accounts := active.LinkedAccounts
	// The active customer must be identity-matched into a non-empty
	// accounts list; backends occasionally omit it.
	if len(accounts) > 0 && !containsAccount(accounts, active) {
		accounts = append([]models.CustomerRecord{stripAccounts(active)}, accounts...)
		active.LinkedAccounts = accounts
	}

	session := models.Session{Token: result.Token, ActiveCustomer: active, LinkedAccounts: accounts}

	m.mu.Lock()
	m.current = session
	m.state = StateAuthenticated
	m.mu.Unlock()

	if err := m.store.Write(session); err != nil {
		log.Printf("session persist: %v", err)
	}
	m.hub.broadcast(Event{Type: EventStateChanged, State: StateAuthenticated})
	return session, nil
}

// mergeSwitch applies the account-list merge rule: a non-empty list in the
// response replaces the stored one, an absent list preserves the stored one
// and injects it into the new active customer so downstream consumers keep
// seeing the full linkage. Caller holds m.mu.
func (m *Manager) mergeSwitch(result gateway.LoginResult) models.Session {
	active := result.Customer
	accounts := active.LinkedAccounts
	if len(accounts) == 0 {
		accounts = m.current.LinkedAccounts
		active.LinkedAccounts = accounts
	}
	if len(accounts) > 0 && !containsAccount(accounts, active) {
		accounts = append([]models.CustomerRecord{stripAccounts(active)}, accounts...)
		active.LinkedAccounts = accounts
	}

	token := result.Token
	if token == "" {
		token = m.current.Token
	}
	return models.Session{Token: token, ActiveCustomer: active, LinkedAccounts: accounts}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.hub.broadcast(Event{Type: EventStateChanged, State: state})
}

func stripAccounts(record models.CustomerRecord) models.CustomerRecord {
	record.LinkedAccounts = nil
	return record
}

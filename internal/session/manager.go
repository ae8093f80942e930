// Package session owns the authenticated identity of the client: login,
// signup, logout, silent refresh and rehydration from persisted storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"

	"github.com/romato/romato/internal/client"
	"github.com/romato/romato/internal/models"
	"github.com/romato/romato/internal/telemetry"
)

// LoginRoute is where Logout sends the user.
const LoginRoute = "/login"

// Phase is the lifecycle position of the session.
type Phase int

const (
	// PhaseRehydrating is the startup phase, before persisted credentials
	// have been checked. It is the zero value.
	PhaseRehydrating Phase = iota
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseRehydrating:
		return "rehydrating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session.
type State struct {
	Phase  Phase
	User   *models.User
	Tokens models.Tokens
}

// Authenticated is true only with a user and a complete credential pair.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.User != nil && s.Tokens.Complete()
}

// Initializing is true until rehydration, including any refresh, completes.
func (s State) Initializing() bool {
	return s.Phase == PhaseRehydrating
}

// Role returns the user's role, or RoleAnonymous without a session.
func (s State) Role() models.Role {
	if !s.Authenticated() {
		return models.RoleAnonymous
	}
	return s.User.Role
}

// API is the part of the REST client the session needs.
type API interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	RefreshToken(ctx context.Context, refresh string) (string, error)
}

// Navigator performs a route change.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

var _ oauth2.TokenSource = (*Manager)(nil)

// Manager is the single writer of the session, in memory and in the Store.
type Manager struct {
	api   API
	store Store
	nav   Navigator

	mu      sync.Mutex
	state   State
	epoch   uint64
	subs    map[int]func(State)
	nextSub int

	initOnce   sync.Once
	settled    chan struct{}
	settleOnce sync.Once
}

// NewManager creates a manager in the rehydrating phase. nav may be nil.
func NewManager(api API, store Store, nav Navigator) *Manager {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Manager{
		api:     api,
		store:   store,
		nav:     nav,
		subs:    make(map[int]func(State)),
		settled: make(chan struct{}),
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to receive every new state. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Wait blocks until the session has left the rehydrating phase.
func (m *Manager) Wait(ctx context.Context) (State, error) {
	select {
	case <-m.settled:
		return m.State(), nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Initialize rehydrates the persisted session once. A stored pair is only
// adopted after a successful silent refresh, any failure ends anonymous.
// It never returns an error.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.initialize(ctx)
	})
}

func (m *Manager) initialize(ctx context.Context) {
	user, tokens, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			log.Warn().Err(err).Msg("discarding unreadable session")
		}
		m.mu.Lock()
		if m.state.Phase != PhaseRehydrating {
			m.mu.Unlock()
			return
		}
		m.clearLocked()
		m.commit(State{Phase: PhaseAnonymous})
		return
	}

	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	log.Debug().Str("username", user.Username).Msg("rehydrating session")

	m.refreshWith(ctx, epoch, *user, tokens.Refresh)
}

// Refresh renews the access token with the held refresh token. A failure
// invalidates the session; it is never retried.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	if !m.state.Authenticated() {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	epoch := m.epoch
	user := *m.state.User
	refresh := m.state.Tokens.Refresh
	m.mu.Unlock()

	return m.refreshWith(ctx, epoch, user, refresh)
}

func (m *Manager) refreshWith(ctx context.Context, epoch uint64, user models.User, refresh string) bool {
	access, err := m.api.RefreshToken(ctx, refresh)

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		log.Debug().Msg("discarding superseded refresh result")
		return false
	}

	if err != nil {
		recordRefresh(ctx, "failed")
		log.Warn().Err(err).Str("username", user.Username).Msg("silent refresh failed, signing out")
		m.clearLocked()
		m.commit(State{Phase: PhaseAnonymous})
		return false
	}

	tokens := models.Tokens{Access: access, Refresh: refresh}
	if err := m.store.Save(user, tokens); err != nil {
		recordRefresh(ctx, "failed")
		log.Warn().Err(err).Msg("failed to persist refreshed session, signing out")
		m.clearLocked()
		m.commit(State{Phase: PhaseAnonymous})
		return false
	}

	recordRefresh(ctx, "ok")
	m.commit(State{Phase: PhaseAuthenticated, User: &user, Tokens: tokens})
	return true
}

// Login authenticates and replaces the whole session with the server's
// response. On error the session is left unchanged.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.epoch++
	if err := m.store.Save(resp.User, resp.Tokens); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to persist session: %w", err)
	}

	user := resp.User
	m.commit(State{Phase: PhaseAuthenticated, User: &user, Tokens: resp.Tokens})

	log.Debug().Str("username", user.Username).Str("role", user.Role.String()).Msg("logged in")

	return nil
}

// Signup registers an account and then logs in with the same credentials.
func (m *Manager) Signup(ctx context.Context, req models.RegisterRequest) error {
	if err := m.api.Register(ctx, req); err != nil {
		return err
	}
	return m.Login(ctx, req.Username, req.Password)
}

// Logout wipes the session and navigates to the login view. It makes no
// network call and is safe to repeat.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.epoch++
	m.clearLocked()
	m.commit(State{Phase: PhaseAnonymous})

	m.nav.Navigate(LoginRoute)
}

// Token implements oauth2.TokenSource with the current access token. It
// never refreshes.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Authenticated() {
		return nil, client.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.state.Tokens.Access,
		RefreshToken: m.state.Tokens.Refresh,
		TokenType:    "Bearer",
	}, nil
}

// clearLocked wipes storage. A storage failure is logged, the in-memory
// session is cleared regardless by the caller.
func (m *Manager) clearLocked() {
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
	}
}

// commit installs next, releases the lock and notifies subscribers. The
// caller must hold m.mu.
func (m *Manager) commit(next State) {
	prev := m.state.Phase
	m.state = next

	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if next.Phase != PhaseRehydrating {
		m.settleOnce.Do(func() { close(m.settled) })
	}

	if prev != next.Phase {
		telemetry.GetMetrics().SessionTransitionsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("from", prev.String()),
				attribute.String("to", next.Phase.String()),
			))
		log.Debug().Str("from", prev.String()).Str("to", next.Phase.String()).Msg("session transition")
	}

	for _, fn := range subs {
		fn(next)
	}
}

func recordRefresh(ctx context.Context, result string) {
	telemetry.GetMetrics().SessionRefreshTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)))
}

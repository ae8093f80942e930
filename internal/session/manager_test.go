package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romato/romato/internal/apitest"
	"github.com/romato/romato/internal/client"
	"github.com/romato/romato/internal/models"
)

type fakeAPI struct {
	mu sync.Mutex

	loginResp   *models.LoginResponse
	loginErr    error
	registerErr error
	registered  []models.RegisterRequest

	refreshAccess string
	refreshErr    error
	refreshGate   chan struct{}
	refreshCalls  int
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResp, nil
}

func (f *fakeAPI) Register(ctx context.Context, req models.RegisterRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	return f.registerErr
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refresh string) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate := f.refreshGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshAccess, f.refreshErr
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func loggedInAPI() *fakeAPI {
	return &fakeAPI{
		loginResp:     &models.LoginResponse{User: testUser, Tokens: testTokens},
		refreshAccess: "access-2",
	}
}

func TestManager_ZeroStateIsInitializing(t *testing.T) {
	m := NewManager(&fakeAPI{}, NewMemoryStore(), nil)

	st := m.State()
	assert.True(t, st.Initializing())
	assert.False(t, st.Authenticated())
	assert.Equal(t, models.RoleAnonymous, st.Role())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_Initialize(t *testing.T) {
	t.Run("nothing persisted ends anonymous without a network call", func(t *testing.T) {
		api := &fakeAPI{}
		m := NewManager(api, NewMemoryStore(), nil)

		m.Initialize(context.Background())

		st, err := m.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PhaseAnonymous, st.Phase)
		assert.False(t, st.Initializing())
		assert.Zero(t, api.calls())
	})

	t.Run("adopts persisted user with the new access token", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testUser, testTokens))
		api := loggedInAPI()
		m := NewManager(api, store, nil)

		m.Initialize(context.Background())

		st := m.State()
		require.True(t, st.Authenticated())
		assert.Equal(t, testUser, *st.User)
		assert.Equal(t, models.Tokens{Access: "access-2", Refresh: "refresh-1"}, st.Tokens)

		user, tokens, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, testUser, *user)
		assert.Equal(t, st.Tokens, tokens)
	})

	t.Run("refresh failure wipes storage and ends anonymous", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testUser, testTokens))
		api := &fakeAPI{refreshErr: errors.New("token_not_valid")}
		nav := &recordingNavigator{}
		m := NewManager(api, store, nav)

		m.Initialize(context.Background())

		st := m.State()
		assert.False(t, st.Authenticated())
		assert.False(t, st.Initializing())
		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)
		assert.Equal(t, 1, api.calls())
		assert.Empty(t, nav.Routes())
	})

	t.Run("stays initializing until the refresh completes", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testUser, testTokens))
		api := loggedInAPI()
		api.refreshGate = make(chan struct{})
		m := NewManager(api, store, nil)

		done := make(chan struct{})
		go func() {
			m.Initialize(context.Background())
			close(done)
		}()

		require.Eventually(t, func() bool { return api.calls() == 1 }, time.Second, time.Millisecond)
		assert.True(t, m.State().Initializing())

		close(api.refreshGate)
		<-done
		assert.True(t, m.State().Authenticated())
	})

	t.Run("runs once", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testUser, testTokens))
		api := loggedInAPI()
		m := NewManager(api, store, nil)

		m.Initialize(context.Background())
		m.Initialize(context.Background())
		assert.Equal(t, 1, api.calls())
	})
}

func TestManager_InitializeAgainstAPI(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "pw", models.RoleCustomer)
	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	api := client.New(cfg)

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := NewManager(api, store, nil)
	first.Initialize(context.Background())
	require.NoError(t, first.Login(context.Background(), "alice", "pw"))

	t.Run("rehydrates across restarts", func(t *testing.T) {
		second := NewManager(api, store, nil)
		second.Initialize(context.Background())
		st := second.State()
		require.True(t, st.Authenticated())
		assert.Equal(t, "alice", st.User.Username)
		assert.Equal(t, first.State().Tokens.Refresh, st.Tokens.Refresh)
	})

	t.Run("rejected refresh cascades to logout", func(t *testing.T) {
		srv.RevokeRefreshTokens()

		third := NewManager(api, store, nil)
		third.Initialize(context.Background())
		st := third.State()
		assert.False(t, st.Authenticated())
		assert.False(t, st.Initializing())

		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)
		assert.Len(t, srv.RequestsTo("/api/token/refresh/"), 2)
	})
}

func TestManager_Login(t *testing.T) {
	t.Run("writes through to storage", func(t *testing.T) {
		store := NewMemoryStore()
		m := NewManager(loggedInAPI(), store, nil)

		require.NoError(t, m.Login(context.Background(), "alice", "pw"))

		st := m.State()
		require.True(t, st.Authenticated())
		user, tokens, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, *st.User, *user)
		assert.Equal(t, st.Tokens, tokens)

		_, err = m.Wait(context.Background())
		require.NoError(t, err)
	})

	t.Run("failure leaves session unchanged", func(t *testing.T) {
		store := NewMemoryStore()
		api := loggedInAPI()
		m := NewManager(api, store, nil)
		require.NoError(t, m.Login(context.Background(), "alice", "pw"))
		before := m.State()

		api.loginErr = &client.APIError{StatusCode: 401, Message: "Invalid credentials"}
		err := m.Login(context.Background(), "alice", "nope")
		require.EqualError(t, err, "Invalid credentials")

		assert.Equal(t, before, m.State())
		_, tokens, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, testTokens, tokens)
	})

	t.Run("persistence failure keeps memory and storage in step", func(t *testing.T) {
		store := NewMemoryStore()
		store.SaveErr = errors.New("disk full")
		m := NewManager(loggedInAPI(), store, nil)
		m.Initialize(context.Background())

		err := m.Login(context.Background(), "alice", "pw")
		require.ErrorContains(t, err, "disk full")
		assert.False(t, m.State().Authenticated())
	})
}

func TestManager_Signup(t *testing.T) {
	req := models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", Role: models.RoleCustomer}

	t.Run("logs in after registering", func(t *testing.T) {
		api := loggedInAPI()
		m := NewManager(api, NewMemoryStore(), nil)

		require.NoError(t, m.Signup(context.Background(), req))
		assert.True(t, m.State().Authenticated())
		require.Len(t, api.registered, 1)
		assert.Equal(t, req, api.registered[0])
	})

	t.Run("registration failure surfaces message", func(t *testing.T) {
		api := loggedInAPI()
		api.registerErr = &client.APIError{StatusCode: 400, Message: "A user with that username already exists."}
		m := NewManager(api, NewMemoryStore(), nil)

		err := m.Signup(context.Background(), req)
		require.EqualError(t, err, "A user with that username already exists.")
		assert.False(t, m.State().Authenticated())
	})

	t.Run("against the API", func(t *testing.T) {
		srv := apitest.New(t)
		cfg := client.DefaultConfig()
		cfg.BaseURL = srv.URL
		m := NewManager(client.New(cfg), NewMemoryStore(), nil)

		require.NoError(t, m.Signup(context.Background(), models.RegisterRequest{
			Username: "pat", Email: "pat@example.com", Password: "pw", Role: models.RoleRestaurantManager,
		}))
		assert.Equal(t, models.RoleRestaurantManager, m.State().Role())
	})
}

func TestManager_Logout(t *testing.T) {
	store := NewMemoryStore()
	nav := &recordingNavigator{}
	m := NewManager(loggedInAPI(), store, nav)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	m.Logout()

	st := m.State()
	assert.False(t, st.Authenticated())
	assert.Nil(t, st.User)
	assert.Empty(t, st.Tokens)
	_, _, err := store.Load()
	require.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{LoginRoute}, nav.Routes())

	m.Logout()
	assert.Equal(t, PhaseAnonymous, m.State().Phase)
}

func TestManager_Refresh(t *testing.T) {
	t.Run("renews the access token", func(t *testing.T) {
		store := NewMemoryStore()
		m := NewManager(loggedInAPI(), store, nil)
		require.NoError(t, m.Login(context.Background(), "alice", "pw"))

		assert.True(t, m.Refresh(context.Background()))
		assert.Equal(t, "access-2", m.State().Tokens.Access)
		_, tokens, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "access-2", tokens.Access)
	})

	t.Run("failure invalidates without retry or navigation", func(t *testing.T) {
		store := NewMemoryStore()
		api := loggedInAPI()
		nav := &recordingNavigator{}
		m := NewManager(api, store, nav)
		require.NoError(t, m.Login(context.Background(), "alice", "pw"))

		api.refreshErr = errors.New("rejected")
		assert.False(t, m.Refresh(context.Background()))

		assert.Equal(t, PhaseAnonymous, m.State().Phase)
		assert.Equal(t, 1, api.calls())
		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)
		assert.Empty(t, nav.Routes())
	})

	t.Run("anonymous session makes no call", func(t *testing.T) {
		api := loggedInAPI()
		m := NewManager(api, NewMemoryStore(), nil)
		m.Initialize(context.Background())

		assert.False(t, m.Refresh(context.Background()))
		assert.Zero(t, api.calls())
	})

	t.Run("result superseded by logout is discarded", func(t *testing.T) {
		store := NewMemoryStore()
		api := loggedInAPI()
		m := NewManager(api, store, nil)
		require.NoError(t, m.Login(context.Background(), "alice", "pw"))

		api.refreshGate = make(chan struct{})
		result := make(chan bool)
		go func() { result <- m.Refresh(context.Background()) }()

		require.Eventually(t, func() bool { return api.calls() == 1 }, time.Second, time.Millisecond)
		m.Logout()
		close(api.refreshGate)

		assert.False(t, <-result)
		assert.Equal(t, PhaseAnonymous, m.State().Phase)
		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)
	})
}

func TestManager_Token(t *testing.T) {
	m := NewManager(loggedInAPI(), NewMemoryStore(), nil)

	_, err := m.Token()
	require.ErrorIs(t, err, client.ErrNotAuthenticated)

	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	tok, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}

func TestManager_Subscribe(t *testing.T) {
	m := NewManager(loggedInAPI(), NewMemoryStore(), nil)

	var mu sync.Mutex
	var phases []Phase
	cancel := m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})

	m.Initialize(context.Background())
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	cancel()
	m.Logout()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseAnonymous, PhaseAuthenticated}, phases)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// Store keys. sessionKey holds the combined record; the legacy keys are the
// three-key layout older clients wrote and are only read for migration.
const (
	sessionKey       = "auth_session"
	legacyAccessKey  = "authToken"
	legacyRefreshKey = "refreshToken"
	legacyUserKey    = "user"
)

// DefaultRegisterTimeout bounds a registration call independently of the
// auth client's default timeout.
const DefaultRegisterTimeout = 30 * time.Second

const (
	msgLoginMissing      = "Username and password are required."
	msgLoginRejected     = "Login failed. Please check your credentials."
	msgLoginTransport    = "Login failed. Please check your connection and try again."
	msgLoginSuperseded   = "You were signed out while logging in. Please log in again."
	msgRegistered        = "Registration successful. Please check your email."
	msgRegisterRejected  = "Registration failed. Please review the form."
	msgRegisterTransport = "Registration failed. Please check your connection and try again."
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	RegisterTimeout time.Duration
}

// Manager is the single source of truth for one client session. All state
// changes go through its methods; mu is never held across a network call.
//
// storeMu orders every write and clear of the persisted record. A write
// re-checks gen while holding it, so once Logout has cleared the store no
// older session can be written back. Lock order is storeMu, then mu.
type Manager struct {
	auth            ports.AuthClient
	store           ports.Store
	log             zerolog.Logger
	registerTimeout time.Duration

	storeMu sync.Mutex

	mu          sync.Mutex
	session     domain.Session
	gen         uint64 // bumped whenever the session is replaced or cleared
	busy        int
	initialized bool

	initOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}
}

var _ ports.SessionManager = (*Manager)(nil)

func NewManager(auth ports.AuthClient, store ports.Store, log zerolog.Logger, opts ManagerOptions) *Manager {
	if opts.RegisterTimeout <= 0 {
		opts.RegisterTimeout = DefaultRegisterTimeout
	}
	return &Manager{
		auth:            auth,
		store:           store,
		log:             log,
		registerTimeout: opts.RegisterTimeout,
		ready:           make(chan struct{}),
	}
}

// Init restores a persisted session. A record is adopted only if it has a
// user and a usable access token; anything else, including corrupt data, is
// cleared. Only the first call has any effect.
func (m *Manager) Init(ctx context.Context) {
	m.initOnce.Do(func() {
		defer m.markReady()

		sess, migrated, err := m.load(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("discarding persisted session")
			m.clearPersisted(ctx)
			return
		}

		if sess.User == nil || !m.auth.CheckValidity(sess.AccessToken) {
			if !sess.Empty() {
				m.log.Debug().Msg("persisted session expired")
			}
			m.clearPersisted(ctx)
			return
		}

		m.mu.Lock()
		m.session = sess
		m.gen++
		gen := m.gen
		m.mu.Unlock()

		if migrated && m.persist(ctx, gen, sess) {
			m.storeMu.Lock()
			m.removeLegacy(ctx)
			m.storeMu.Unlock()
		}
		m.log.Info().Str("user", sess.User.Username).Str("role", string(sess.User.Role)).Msg("session restored")
	})
}

// Ready is closed once Init has completed.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Loading is true until Init completes and while a login, registration or
// logout is running.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.initialized || m.busy > 0
}

// Login verifies credentials and establishes the session. It never returns
// an error; failures are reported in the result. Navigation to Landing is
// left to the caller.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) ports.LoginResult {
	id := creds.Identifier()
	if id == "" || creds.Password == "" {
		return ports.LoginResult{Errors: &ports.AuthErrors{
			Message: msgLoginMissing,
			Raw:     domain.ErrInvalidCredentials,
		}}
	}

	m.begin()
	defer m.end()

	sess, err := m.auth.VerifyCredentials(ctx, id, creds.Password)
	if err == nil && (sess == nil || sess.User == nil || sess.AccessToken == "") {
		err = fmt.Errorf("login response: %w", domain.ErrMalformedSession)
	}
	if err != nil {
		msg := loginMessage(err)
		m.log.Error().Err(err).Str("identifier", id).Msg("login failed")
		m.dropIfInvalid(ctx)
		return ports.LoginResult{Errors: &ports.AuthErrors{Message: msg, Raw: err}}
	}

	m.mu.Lock()
	m.session = sess.Clone()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	if !m.persist(ctx, gen, *sess) {
		m.log.Info().Str("user", sess.User.Username).Msg("login superseded by logout")
		return ports.LoginResult{Errors: &ports.AuthErrors{
			Message: msgLoginSuperseded,
			Raw:     domain.ErrSessionCleared,
		}}
	}
	m.log.Info().Str("user", sess.User.Username).Str("role", string(sess.User.Role)).Msg("login succeeded")

	data := sess.Clone()
	return ports.LoginResult{
		Success: true,
		Data:    &data,
		Landing: domain.LandingRoute(sess.User),
	}
}

func loginMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		if d := apiErr.Detail(); d != "" {
			return d
		}
		return msgLoginRejected
	}
	if errors.Is(err, domain.ErrTransport) {
		return msgLoginTransport
	}
	return msgLoginRejected
}

// Register submits a new account. It never establishes a session: the
// account has to be activated and then logged into separately.
func (m *Manager) Register(ctx context.Context, req domain.RegistrationRequest) ports.RegisterResult {
	req = req.Normalize()

	m.begin()
	defer m.end()

	resp, err := m.auth.Register(ctx, req, ports.RegisterOptions{Timeout: m.registerTimeout})
	if err != nil {
		m.log.Error().Err(err).Str("username", req.Username).Msg("registration failed")
		errs := &ports.AuthErrors{Message: msgRegisterTransport, Raw: err}
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			errs.Fields = apiErr.Payload
			errs.Message = msgRegisterRejected
			if d := apiErr.Detail(); d != "" {
				errs.Message = d
			}
		}
		return ports.RegisterResult{Errors: errs}
	}
	if !resp.Success {
		m.log.Warn().Str("username", req.Username).Msg("registration refused")
		return ports.RegisterResult{Errors: &ports.AuthErrors{
			Message: msgRegisterRejected,
			Fields:  resp.Errors,
			Raw:     domain.ErrRegistrationRejected,
		}}
	}

	m.log.Info().Str("username", req.Username).Str("role", string(req.Role)).Msg("registration accepted")
	return ports.RegisterResult{
		Success:            true,
		Message:            msgRegistered,
		RequiresActivation: true,
	}
}

// Logout clears the session locally and in the store, then asks the backend
// to invalidate the refresh token. The remote call is best effort.
func (m *Manager) Logout(ctx context.Context) {
	m.begin()
	defer m.end()

	m.mu.Lock()
	prev := m.session
	m.session = domain.Session{}
	m.gen++
	m.mu.Unlock()

	m.clearPersisted(ctx)

	if prev.RefreshToken == "" && prev.AccessToken == "" {
		return
	}
	if err := m.auth.InvalidateSession(ctx, prev.AccessToken, prev.RefreshToken); err != nil {
		m.log.Warn().Err(err).Msg("remote logout failed")
		return
	}
	if prev.User != nil {
		m.log.Info().Str("user", prev.User.Username).Msg("logged out")
	}
}

// RefreshAuth obtains a new access token. Any failure logs the session out
// and is returned. If Logout ran while the refresh was in flight the result
// is discarded and domain.ErrSessionCleared returned.
func (m *Manager) RefreshAuth(ctx context.Context) (*ports.RefreshResult, error) {
	m.mu.Lock()
	refresh := m.session.RefreshToken
	gen := m.gen
	m.mu.Unlock()

	if refresh == "" {
		m.Logout(ctx)
		return nil, fmt.Errorf("refresh auth: %w", domain.ErrNoRefreshToken)
	}

	bundle, err := m.auth.RefreshToken(ctx, refresh)
	if err == nil && (bundle == nil || bundle.Access == "") {
		err = fmt.Errorf("refresh response: %w", domain.ErrMalformedSession)
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("token refresh failed")
		m.mu.Lock()
		stale := m.gen != gen
		m.mu.Unlock()
		if !stale {
			m.Logout(ctx)
		}
		return nil, fmt.Errorf("refresh auth: %w: %w", domain.ErrRefreshRejected, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.Debug().Msg("refresh superseded by logout")
		return nil, fmt.Errorf("refresh auth: %w", domain.ErrSessionCleared)
	}
	m.session.AccessToken = bundle.Access
	if bundle.Refresh != "" {
		m.session.RefreshToken = bundle.Refresh
	}
	if len(bundle.User) > 0 {
		if merged, mergeErr := m.session.User.Merge(bundle.User); mergeErr == nil {
			m.session.User = merged
		} else {
			m.log.Warn().Err(mergeErr).Msg("ignoring user fields from refresh")
		}
	}
	snap := m.session.Clone()
	m.mu.Unlock()

	if !m.persist(ctx, gen, snap) {
		m.log.Debug().Msg("refresh superseded by logout")
		return nil, fmt.Errorf("refresh auth: %w", domain.ErrSessionCleared)
	}
	return &ports.RefreshResult{AccessToken: snap.AccessToken, User: snap.User}, nil
}

// UpdateUser shallow-merges patch into the cached user and persists it. It
// makes no network call; callers use it after the backend confirmed an edit.
func (m *Manager) UpdateUser(ctx context.Context, patch map[string]any) error {
	fields, err := domain.RawFields(patch)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	m.mu.Lock()
	if m.session.User == nil {
		m.mu.Unlock()
		return fmt.Errorf("update user: %w", domain.ErrNoSession)
	}
	merged, err := m.session.User.Merge(fields)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("update user: %w", err)
	}
	m.session.User = merged
	snap := m.session.Clone()
	gen := m.gen
	m.mu.Unlock()

	if !m.persist(ctx, gen, snap) {
		return fmt.Errorf("update user: %w", domain.ErrSessionCleared)
	}
	return nil
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.User.Clone()
}

// AccessToken returns the current access token, usable or not.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.AccessToken
}

// TokenUsable reports whether the current access token is still usable.
// It is the only place token expiry is judged.
func (m *Manager) TokenUsable() bool {
	return m.auth.CheckValidity(m.AccessToken())
}

// IsAuthenticated is re-evaluated on every call.
func (m *Manager) IsAuthenticated() bool {
	return m.TokenUsable() && m.User() != nil
}

func (m *Manager) Snapshot() ports.SessionSnapshot {
	user := m.User()
	return ports.SessionSnapshot{
		User:            user,
		IsAuthenticated: user != nil && m.TokenUsable(),
		Loading:         m.Loading(),
	}
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.busy++
	m.mu.Unlock()
}

func (m *Manager) end() {
	m.mu.Lock()
	m.busy--
	m.mu.Unlock()
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() {
		m.mu.Lock()
		m.initialized = true
		m.mu.Unlock()
		close(m.ready)
	})
}

// dropIfInvalid clears a session that already violates the user/token
// invariant. A healthy session is left untouched.
func (m *Manager) dropIfInvalid(ctx context.Context) {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()

	if sess.Empty() {
		return
	}
	if sess.User != nil && m.auth.CheckValidity(sess.AccessToken) {
		return
	}

	m.mu.Lock()
	m.session = domain.Session{}
	m.gen++
	m.mu.Unlock()
	m.clearPersisted(ctx)
}

// load reads the combined record, falling back to the legacy keys. migrated
// is true when the result came from the legacy layout.
func (m *Manager) load(ctx context.Context) (sess domain.Session, migrated bool, err error) {
	raw, err := m.store.Get(ctx, sessionKey)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return domain.Session{}, false, fmt.Errorf("%w: %w", domain.ErrMalformedSession, err)
		}
		return sess, false, nil
	case !errors.Is(err, domain.ErrStoreMiss):
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}

	access, err := m.getOptional(ctx, legacyAccessKey)
	if err != nil {
		return domain.Session{}, false, err
	}
	refresh, err := m.getOptional(ctx, legacyRefreshKey)
	if err != nil {
		return domain.Session{}, false, err
	}
	rawUser, err := m.getOptional(ctx, legacyUserKey)
	if err != nil {
		return domain.Session{}, false, err
	}
	if access == "" && refresh == "" && rawUser == "" {
		return domain.Session{}, false, nil
	}

	sess = domain.Session{AccessToken: access, RefreshToken: refresh}
	if rawUser != "" && rawUser != "null" {
		var u domain.User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			return domain.Session{}, false, fmt.Errorf("%w: %w", domain.ErrMalformedSession, err)
		}
		sess.User = &u
	}
	return sess, true, nil
}

func (m *Manager) getOptional(ctx context.Context, key string) (string, error) {
	v, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrStoreMiss) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

// persist writes the session record if the session is still generation gen.
// It reports false when the session was replaced or cleared in the meantime;
// nothing is written then. Store failures are logged only.
func (m *Manager) persist(ctx context.Context, gen uint64, sess domain.Session) bool {
	b, err := json.Marshal(sess)
	if err != nil {
		m.log.Error().Err(err).Msg("encode session")
		return true
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	current := m.gen == gen
	m.mu.Unlock()
	if !current {
		return false
	}

	if err := m.store.Set(ctx, sessionKey, string(b)); err != nil {
		m.log.Error().Err(err).Msg("persist session")
	}
	return true
}

func (m *Manager) clearPersisted(ctx context.Context) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if err := m.store.Remove(ctx, sessionKey); err != nil {
		m.log.Error().Err(err).Msg("clear session")
	}
	m.removeLegacy(ctx)
}

// removeLegacy must be called with storeMu held.
func (m *Manager) removeLegacy(ctx context.Context) {
	for _, k := range []string{legacyAccessKey, legacyRefreshKey, legacyUserKey} {
		if err := m.store.Remove(ctx, k); err != nil {
			m.log.Error().Err(err).Str("key", k).Msg("clear legacy session key")
		}
	}
}

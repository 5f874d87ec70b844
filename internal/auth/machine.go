package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/pkce"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultScopes is requested when no scopes are configured: enough to read private playlists and reorder them.
var DefaultScopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
}

// Options configures a [Machine].
type Options struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	AuthURL     string // defaults to the catalog service's authorize endpoint
	TokenURL    string // defaults to the catalog service's token endpoint
	Store       Store
	Logger      *log.Logger
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Machine is the auth state machine. It is safe for concurrent use.
type Machine struct {
	mu           sync.Mutex
	state        State
	session      *models.Session
	consumedCode string

	oauth      *oauth2.Config
	store      Store
	logger     *log.Logger
	httpClient *http.Client
	now        func() time.Time
}

// NewMachine creates a [Machine] in [LoggedOut]. Call [Machine.Restore] to pick up a persisted Session.
func NewMachine(opts Options) (*Machine, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: client id", shared.ErrMissingCredentials)
	}
	if opts.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect uri", shared.ErrMissingArgument)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store", shared.ErrMissingArgument)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyauth.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Machine{
		state: LoggedOut,
		oauth: &oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURI,
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:      opts.Store,
		logger:     shared.WithLogger(opts.Logger, "component", "auth"),
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current Session, if any.
func (m *Machine) Session() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return models.Session{}, false
	}
	return *m.session, true
}

// BeginLogin stores a fresh PendingAuth and returns the authorization URL the browser should be sent to.
func (m *Machine) BeginLogin(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case ExchangingCode, LoggedIn:
		return "", fmt.Errorf("%w: cannot begin login while %s", shared.ErrInvalidState, m.state)
	}

	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	state, err := shared.GenerateState()
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	pending := models.PendingAuth{CodeVerifier: verifier, State: state, CreatedAt: m.now()}
	if err := m.putJSON(ctx, PendingKey, pending); err != nil {
		return "", err
	}

	m.state = AwaitingRedirect
	m.session = nil
	m.logger.Debug("login started", "state", state)

	return m.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
		oauth2.SetAuthURLParam("code_challenge", pkce.DeriveChallenge(verifier)),
	), nil
}

// CompleteFromRedirect processes one page load's redirect parameters and returns the resulting state.
//
// A call made while an exchange is already in flight is a no-op, as is a repeat of the code that produced
// the current Session.
func (m *Machine) CompleteFromRedirect(ctx context.Context, r Redirect) (State, error) {
	m.mu.Lock()
	if m.state == ExchangingCode {
		m.mu.Unlock()
		m.logger.Debug("exchange already in flight, ignoring redirect")
		return ExchangingCode, nil
	}

	if errCode, desc := r.Error(); errCode != "" {
		m.state, m.session = LoggedOut, nil
		m.mu.Unlock()
		m.deleteKey(ctx, PendingKey)
		err := authorizationError(errCode, desc)
		m.logger.Warn("authorization redirect carried an error", "error", errCode, "description", desc)
		return LoggedOut, err
	}

	if code := r.Code(); code != "" {
		if m.state == LoggedIn && code == m.consumedCode {
			m.mu.Unlock()
			return LoggedIn, nil
		}
		m.state = ExchangingCode
		m.mu.Unlock()
		return m.finishExchange(ctx, code, r.State())
	}

	if token, expiresIn := r.LegacyToken(); token != "" {
		m.mu.Unlock()
		return m.acceptLegacy(ctx, token, expiresIn)
	}

	m.mu.Unlock()
	return m.Restore(ctx)
}

func (m *Machine) finishExchange(ctx context.Context, code, state string) (State, error) {
	sess, err := m.exchange(ctx, code, state)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state, m.session = LoggedOut, nil
		m.logger.Error("code exchange failed", "error", err)
		return LoggedOut, err
	}
	m.state, m.session, m.consumedCode = LoggedIn, sess, code
	m.logger.Info("logged in", "expires_at", sess.ExpiresAt)
	return LoggedIn, nil
}

// exchange redeems code with the stored verifier. PendingAuth is removed whatever the outcome.
func (m *Machine) exchange(ctx context.Context, code, state string) (*models.Session, error) {
	defer m.deleteKey(ctx, PendingKey)

	var pending models.PendingAuth
	if err := m.getJSON(ctx, PendingKey, &pending); err != nil {
		if errors.Is(err, shared.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, shared.ErrMissingVerifier)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if pending.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, shared.ErrMissingVerifier)
	}
	if pending.State != "" && pending.State != state {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, shared.ErrStateMismatch)
	}

	tok, err := m.oauth.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		return nil, newExchangeError(err)
	}

	sess := m.sessionFromToken(tok)
	if err := m.putJSON(ctx, SessionKey, sess); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return sess, nil
}

func (m *Machine) acceptLegacy(ctx context.Context, token string, expiresIn int) (State, error) {
	sess := &models.Session{AccessToken: token, TokenType: "Bearer", Legacy: true}
	if expiresIn > 0 {
		sess.ExpiresAt = m.now().Add(time.Duration(expiresIn) * time.Second)
	}
	if err := m.putJSON(ctx, SessionKey, sess); err != nil {
		return m.State(), fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.session = LoggedIn, sess
	m.logger.Info("accepted legacy fragment token")
	return LoggedIn, nil
}

// Restore loads the persisted Session.
//
// An unexpired Session restores [LoggedIn]; an expired one with refresh material yields [Expired];
// anything else clears storage and yields [LoggedOut].
func (m *Machine) Restore(ctx context.Context) (State, error) {
	var sess models.Session
	err := m.getJSON(ctx, SessionKey, &sess)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case errors.Is(err, shared.ErrRecordNotFound):
		if m.state != AwaitingRedirect {
			m.state = LoggedOut
		}
		m.session = nil
		return m.state, nil
	case err != nil:
		m.logger.Warn("discarding unreadable session", "error", err)
		m.deleteKey(ctx, SessionKey)
		m.state, m.session = LoggedOut, nil
		return LoggedOut, nil
	case sess.AccessToken == "":
		m.deleteKey(ctx, SessionKey)
		m.state, m.session = LoggedOut, nil
		return LoggedOut, nil
	case sess.Expired(m.now()) && sess.CanRefresh():
		m.state, m.session = Expired, &sess
		return Expired, nil
	case sess.Expired(m.now()):
		m.logger.Info("persisted session expired")
		m.deleteKey(ctx, SessionKey)
		m.state, m.session = LoggedOut, nil
		return LoggedOut, nil
	}

	m.state, m.session = LoggedIn, &sess
	return LoggedIn, nil
}

// CurrentToken returns the bearer token when [LoggedIn] and not known to be expired.
func (m *Machine) CurrentToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != LoggedIn || m.session == nil {
		return "", false
	}
	if m.session.Expired(m.now()) {
		m.state = Expired
		return "", false
	}
	return m.session.AccessToken, true
}

// Token returns a usable bearer token, refreshing an expired Session when refresh material exists.
func (m *Machine) Token(ctx context.Context) (string, error) {
	if tok, ok := m.CurrentToken(); ok {
		return tok, nil
	}
	if m.State() == Expired {
		if err := m.Refresh(ctx); err != nil {
			return "", err
		}
		if tok, ok := m.CurrentToken(); ok {
			return tok, nil
		}
	}
	return "", shared.ErrNotAuthenticated
}

// Refresh exchanges the Session's refresh material for a new access token.
// On failure the Session is cleared and the machine returns to [LoggedOut].
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil || !m.session.CanRefresh() {
		m.mu.Unlock()
		return shared.ErrNoRefreshToken
	}
	old := *m.session
	m.mu.Unlock()

	// Without an access token the source always exchanges, whatever the clock says.
	src := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: old.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		m.clear(ctx)
		m.logger.Warn("token refresh failed", "error", err)
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, newExchangeError(err))
	}

	sess := m.sessionFromToken(tok)
	if sess.RefreshToken == "" {
		sess.RefreshToken = old.RefreshToken
	}
	if err := m.putJSON(ctx, SessionKey, sess); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.session = LoggedIn, sess
	m.logger.Debug("token refreshed", "expires_at", sess.ExpiresAt)
	return nil
}

// Expire handles an upstream rejection of the current token: the Session is dropped
// and persisted state cleared. The token is never retried.
func (m *Machine) Expire(cause error) {
	m.mu.Lock()
	if m.state != LoggedIn && m.state != Expired {
		m.mu.Unlock()
		return
	}
	m.state = Expired
	m.mu.Unlock()

	m.logger.Warn("session rejected upstream, logging out", "cause", cause)
	m.clear(context.Background())
}

// Logout clears Session and PendingAuth.
func (m *Machine) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.state, m.session, m.consumedCode = LoggedOut, nil, ""
	m.mu.Unlock()

	if err := m.store.Delete(ctx, SessionKey); err != nil {
		return err
	}
	return m.store.Delete(ctx, PendingKey)
}

func (m *Machine) clear(ctx context.Context) {
	m.mu.Lock()
	m.state, m.session = LoggedOut, nil
	m.mu.Unlock()
	m.deleteKey(ctx, SessionKey)
}

func (m *Machine) clientContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Machine) getJSON(ctx context.Context, key string, v any) error {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (m *Machine) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return m.store.Put(ctx, key, data)
}

func (m *Machine) deleteKey(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to delete record", "key", key, "error", err)
	}
}

// sessionFromToken dates expiry on the machine clock when the server reported expires_in.
func (m *Machine) sessionFromToken(tok *oauth2.Token) *models.Session {
	sess := &models.Session{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if tok.ExpiresIn > 0 {
		sess.ExpiresAt = m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return sess
}

package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// State of a [Machine].
type State int

const (
	LoggedOut State = iota
	AwaitingRedirect
	ExchangingCode
	LoggedIn
	Expired
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case AwaitingRedirect:
		return "awaiting_redirect"
	case ExchangingCode:
		return "exchanging_code"
	case LoggedIn:
		return "logged_in"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Fixed keys for persisted client-side state.
const (
	SessionKey = "spotify_session"
	PendingKey = "spotify_pending_auth"
)

// Store persists opaque records under fixed keys.
//
// Get returns an error wrapping [shared.ErrRecordNotFound] for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Redirect is what the authorization server sent back: query parameters and,
// for the legacy implicit flow, parameters carried in the URL fragment.
type Redirect struct {
	Query    url.Values
	Fragment url.Values
}

// ParseRedirect splits a full redirect URL into a [Redirect].
func ParseRedirect(raw string) (Redirect, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Redirect{}, fmt.Errorf("invalid redirect url: %w", err)
	}
	frag, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return Redirect{}, fmt.Errorf("invalid redirect fragment: %w", err)
	}
	return Redirect{Query: u.Query(), Fragment: frag}, nil
}

// Code returns the authorization code, if any.
func (r Redirect) Code() string { return r.Query.Get("code") }

// State returns the state parameter echoed by the server.
func (r Redirect) State() string { return r.Query.Get("state") }

// Error returns the error parameter and its description.
func (r Redirect) Error() (code, description string) {
	return r.Query.Get("error"), r.Query.Get("error_description")
}

// LegacyToken returns the fragment access token and its lifetime in seconds (0 if absent).
func (r Redirect) LegacyToken() (token string, expiresIn int) {
	token = r.Fragment.Get("access_token")
	if v := r.Fragment.Get("expires_in"); v != "" {
		expiresIn, _ = strconv.Atoi(v)
	}
	return token, expiresIn
}

// Empty reports whether the redirect carries no auth parameters.
func (r Redirect) Empty() bool {
	errCode, _ := r.Error()
	tok, _ := r.LegacyToken()
	return errCode == "" && r.Code() == "" && tok == ""
}

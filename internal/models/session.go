package models

import "time"

// Session is the persisted bearer credential.
//
// A zero ExpiresAt means the expiry is unknown and the token is treated as valid until upstream rejects it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	Legacy       bool      `json:"legacy,omitempty"`
}

// Expired reports whether the session is known to be expired at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CanRefresh reports whether refresh material is present.
func (s Session) CanRefresh() bool {
	return s.RefreshToken != ""
}

// PendingAuth exists only between the authorize redirect and the code exchange.
type PendingAuth struct {
	CodeVerifier string    `json:"code_verifier"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrMissingVerifier  = fmt.Errorf("missing code verifier")
	ErrStateMismatch    = fmt.Errorf("oauth state mismatch")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrInvalidState     = fmt.Errorf("invalid auth state")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Provider errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")
	ErrTransientFetch      = fmt.Errorf("transient fetch error")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrTrackNotFound       = fmt.Errorf("track not found")

	// Playlist operation errors
	ErrLoadAbandoned = fmt.Errorf("playlist load abandoned")
	ErrNoTable       = fmt.Errorf("no playlist loaded")
	ErrRowMismatch   = fmt.Errorf("row set mismatch")
	ErrWriteConflict = fmt.Errorf("write conflict")
	ErrWriteVerify   = fmt.Errorf("write verification failed")

	// Storage errors
	ErrRecordNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

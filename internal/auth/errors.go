package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alpsaur/SortYourMusic/internal/shared"
	"golang.org/x/oauth2"
)

// ExchangeError reports a failed authorization-code or refresh exchange.
//
// Code and Description carry the upstream "error" and "error_description" values when the server sent them.
type ExchangeError struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ExchangeError) Error() string {
	msg := "token exchange failed"
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	switch {
	case e.Code != "" && e.Description != "":
		msg = fmt.Sprintf("%s: %s: %s", msg, e.Code, e.Description)
	case e.Description != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	case e.Code != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	case e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both [shared.ErrAuthFailed] and the underlying cause.
func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrAuthFailed}
	}
	return []error{shared.ErrAuthFailed, e.Err}
}

func newExchangeError(err error) *ExchangeError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ee := &ExchangeError{Code: re.ErrorCode, Description: re.ErrorDescription, Err: err}
		if re.Response != nil {
			ee.Status = re.Response.StatusCode
		}
		if ee.Status == 0 {
			ee.Status = http.StatusBadRequest
		}
		return ee
	}
	return &ExchangeError{Err: err}
}

// authorizationError is returned when the redirect itself carries an error parameter.
func authorizationError(code, description string) error {
	if description == "" {
		return fmt.Errorf("%w: authorization denied: %s", shared.ErrAuthFailed, code)
	}
	return fmt.Errorf("%w: authorization denied: %s: %s", shared.ErrAuthFailed, code, description)
}

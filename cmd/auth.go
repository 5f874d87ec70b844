package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/auth"
	"github.com/alpsaur/SortYourMusic/internal/server"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// AuthLogin starts a login, opens the browser, and waits for the redirect on the loopback server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureMachine(ctx); err != nil {
		return err
	}
	if r.machine.State() == auth.LoggedIn {
		if err := r.machine.Logout(ctx); err != nil {
			return fmt.Errorf("failed to clear previous session: %w", err)
		}
	}

	callbackPath := "/callback"
	if u, err := url.Parse(r.config.Credentials.Spotify.RedirectURI); err == nil && u.Path != "" {
		callbackPath = u.Path
	}

	handler := server.NewCallbackHandler(r.machine, callbackPath, r.logger)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	srv := server.New(r.config.Server.Addr(), router, r.logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL, err := r.machine.BeginLogin(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify login...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = loginTimeout
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	r.writePlain("  If the browser cannot reach this machine, run 'sym auth complete <redirect url>' instead.\n")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-srv.Errors():
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Err != nil {
		return fmt.Errorf("authorization failed: %w", result.Err)
	}
	if result.State != auth.LoggedIn {
		return fmt.Errorf("%w: login ended in state %s", shared.ErrAuthFailed, result.State)
	}

	r.logger.Info("login complete")
	return r.writePlain("✓ Logged in\n")
}

// AuthComplete finishes a login from a redirect URL pasted by the user,
// including the legacy form that carries the token in the fragment.
func (r *Runner) AuthComplete(ctx context.Context, cmd *cli.Command) error {
	raw := strings.TrimSpace(cmd.StringArg("url"))
	if raw == "" {
		return fmt.Errorf("%w: redirect url", shared.ErrMissingArgument)
	}
	redirect, err := auth.ParseRedirect(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if redirect.Empty() {
		return fmt.Errorf("%w: url carries no code, token, or error", shared.ErrInvalidArgument)
	}

	if err := r.ensureMachine(ctx); err != nil {
		return err
	}
	state, err := r.machine.CompleteFromRedirect(ctx, redirect)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if state != auth.LoggedIn {
		return fmt.Errorf("%w: login ended in state %s", shared.ErrAuthFailed, state)
	}
	return r.writePlain("✓ Logged in\n")
}

type authStatus struct {
	State       string    `json:"state"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	Refreshable bool      `json:"refreshable"`
	Legacy      bool      `json:"legacy"`
}

// AuthStatus reports the restored session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureMachine(ctx); err != nil {
		return err
	}

	status := authStatus{State: r.machine.State().String()}
	if sess, ok := r.machine.Session(); ok {
		status.ExpiresAt = sess.ExpiresAt
		status.Refreshable = sess.CanRefresh()
		status.Legacy = sess.Legacy
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	switch r.machine.State() {
	case auth.LoggedIn:
		r.writePlain("✓ Logged in\n")
		if !status.ExpiresAt.IsZero() {
			r.writePlain("  Expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
		}
		if status.Legacy {
			r.writePlain("  Session came from a legacy fragment token and cannot be refreshed\n")
		}
	case auth.Expired:
		r.writePlain("⚠ Session expired; it will be refreshed on next use\n")
	default:
		r.writePlain("✗ Not logged in\n")
	}
	return nil
}

// AuthRefresh forces a token refresh.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureMachine(ctx); err != nil {
		return err
	}
	if err := r.machine.Refresh(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed\n")
}

// AuthLogout clears the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureMachine(ctx); err != nil {
		return err
	}
	if err := r.machine.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return r.writePlain("✓ Logged out\n")
}

package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/alpsaur/SortYourMusic/internal/auth"
	"github.com/charmbracelet/log"
)

// Completer processes one redirect. Implemented by [auth.Machine].
type Completer interface {
	CompleteFromRedirect(ctx context.Context, r auth.Redirect) (auth.State, error)
}

// CallbackResult is the outcome of the first callback.
type CallbackResult struct {
	State auth.State
	Err   error
}

// CallbackHandler handles the authorization redirect on the loopback server.
// Implements the Handler interface for registration with a Router.
type CallbackHandler struct {
	completer    Completer
	callbackPath string
	donePath     string
	logger       *log.Logger
	resultChan   chan CallbackResult
	once         sync.Once
}

// NewCallbackHandler creates a handler serving callbackPath, which must match the path of the registered
// redirect URI.
func NewCallbackHandler(c Completer, callbackPath string, logger *log.Logger) *CallbackHandler {
	if callbackPath == "" {
		callbackPath = "/callback"
	}
	return &CallbackHandler{
		completer:    c,
		callbackPath: callbackPath,
		donePath:     "/done",
		logger:       logger,
		resultChan:   make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.callbackPath, h.donePath}
}

// ServeHTTP completes the login from the callback's query parameters, or renders the landing page.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == h.donePath {
		writePage(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the terminal.")
		return
	}

	redirect := auth.Redirect{Query: r.URL.Query()}
	if redirect.Empty() {
		http.Error(w, "Missing authorization parameters", http.StatusBadRequest)
		return
	}

	state, err := h.completer.CompleteFromRedirect(r.Context(), redirect)
	h.Send(CallbackResult{State: state, Err: err})

	if err != nil {
		if h.logger != nil {
			h.logger.Warn("callback failed", "error", err)
		}
		writePage(w, http.StatusBadRequest, "Authorization Failed", err.Error())
		return
	}

	http.Redirect(w, r, h.donePath, http.StatusSeeOther)
}

// Send sends the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving login completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}

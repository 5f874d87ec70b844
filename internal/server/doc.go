// Package server provides the loopback HTTP boundary used during login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] is the one middleware the CLI installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] receives the authorization server's redirect, hands its parameters to the auth state
// machine, and reports the resulting state through a channel. A successful callback is answered with a
// redirect to a clean URL so the authorization code does not linger in the browser's address bar or history.
//
// Only the first callback is reported; later hits still reach the state machine, which treats a replayed
// code as a no-op.
//
// # Server
//
// [Server] binds the router to the configured host and port for the length of one login and is shut down
// once a result arrives.
package server

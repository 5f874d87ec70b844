// Package auth drives the PKCE authorization-code login against the catalog service.
//
// A [Machine] owns the single [models.Session] for the process. It moves through
//
//	LoggedOut → AwaitingRedirect → ExchangingCode → LoggedIn → (Expired | LoggedOut)
//
// and persists the Session and the transient PendingAuth record through a [Store]
// under the fixed keys [SessionKey] and [PendingKey]. Provider clients never read the
// Session directly: callers take the bearer token from [Machine.CurrentToken] and pass
// it explicitly, and report upstream rejections back through [Machine.Expire].
//
// Redirects are handled by [Machine.CompleteFromRedirect], which accepts, in order of precedence,
// an error parameter, an authorization code, a legacy fragment token, or nothing at all
// (restore the persisted Session).
package auth

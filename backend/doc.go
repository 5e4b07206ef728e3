// Package backend is the HTTP client for the bearer-token REST backend that authenticates end
// users.
//
// Endpoints:
//
//	POST /auth/login   {username, password} -> {success, data: {access_token, user}, message}
//	GET  /auth/me      Authorization: Bearer <token> -> user record
//	POST /auth/logout  Authorization: Bearer <token> (best-effort)
//
// Every request carries an X-Request-ID. Failures are reported as [*StatusError] for non-2xx
// responses, [ErrTransport] for connection failures and timeouts, and [ErrDecode] for bodies that
// cannot be parsed. Mapping those to session outcomes is the caller's job.
package backend

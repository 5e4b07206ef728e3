package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireSession admits any Active session.
func RequireSession(engine *goSession.Engine) func(http.Handler) http.Handler {
	return Guard(engine)
}

// RequireSource admits only sessions established by source, e.g. admin pages that accept
// [goSession.SourceFederated] only.
func RequireSource(engine *goSession.Engine, source goSession.AuthSource) func(http.Handler) http.Handler {
	return Guard(engine, source)
}

// RequireRole admits Active sessions whose user carries role.
func RequireRole(engine *goSession.Engine, role string) func(http.Handler) http.Handler {
	return guard(engine, func(s goSession.Session) bool {
		return s.User != nil && s.User.Role == role
	})
}

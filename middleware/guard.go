package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	goSession "github.com/MrEthical07/goSession"
)

// SessionFromContext returns the session snapshot a guard attached to the request.
func SessionFromContext(ctx context.Context) (goSession.Session, bool) {
	return goSession.SessionFromContext(ctx)
}

// Guard admits a request only while the engine holds an Active session whose source is one of
// sources. An empty sources list accepts either source.
//
// Responses: 503 with Retry-After while startup is still resolving, 401 without a session,
// 403 for a session of another source.
func Guard(engine *goSession.Engine, sources ...goSession.AuthSource) func(http.Handler) http.Handler {
	return guard(engine, func(s goSession.Session) bool {
		return len(sources) == 0 || slices.Contains(sources, s.Source)
	})
}

func guard(engine *goSession.Engine, allow func(goSession.Session) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			s := engine.Session()
			switch {
			case s.Status == goSession.StatusUnresolved || s.Status == goSession.StatusRestoring:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session resolving", http.StatusServiceUnavailable)
				return
			case !s.Active():
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case !allow(s):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(goSession.WithSession(r.Context(), s)))
		})
	}
}

// SessionHandler serves the current session snapshot as JSON. It never requires a session.
func SessionHandler(engine *goSession.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var s goSession.Session
		if engine != nil {
			s = engine.Session()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	})
}

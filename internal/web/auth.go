package web

import (
	"context"
	"net/http"

	"github.com/orlandnut/voicednut/internal/initdata"
)

const initDataHeader = "X-TG-Init-Data"

type userKey struct{}

// authMiddleware admits requests carrying a valid initData blob, taken from
// the X-TG-Init-Data header or the initData query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(initDataHeader)
		if raw == "" {
			raw = r.URL.Query().Get("initData")
		}
		if !s.verifier.Verify(raw) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		fields, err := initdata.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		user, err := initdata.ParseUser(fields)
		if err != nil {
			s.log.Warn().Err(err).Msg("initData without usable user")
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(ctx context.Context) (initdata.User, bool) {
	u, ok := ctx.Value(userKey{}).(initdata.User)
	return u, ok
}

// GET /api/me -> verified mini app user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := userFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": u})
}

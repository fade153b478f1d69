package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/edvart/wotc-admin/internal/store"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext retrieves the admin session stored by RequireAdmin.
func SessionFromContext(ctx context.Context) *store.Session {
	session, _ := ctx.Value(sessionContextKey).(*store.Session)
	return session
}

// RequireAdmin rejects API requests without a live admin session with a JSON 401.
func RequireAdmin(sessions *SessionManager) func(http.Handler) http.Handler {
	return requireSession(sessions, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
	})
}

// RequireAdminPage redirects page requests without a live admin session to loginPath.
func RequireAdminPage(sessions *SessionManager, loginPath string) func(http.Handler) http.Handler {
	return requireSession(sessions, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, loginPath, http.StatusFound)
	})
}

func requireSession(sessions *SessionManager, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessions.GetSession(r.Context(), r)
			if err != nil || session == nil {
				deny(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/edvart/wotc-admin/internal/store"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "wotc-admin-session"
	SessionDuration   = 7 * 24 * time.Hour
)

// ErrInvalidPassword is returned by Login when the password does not match.
var ErrInvalidPassword = errors.New("invalid password")

// SessionManager handles admin sessions.
type SessionManager struct {
	store    store.Store
	password string
	secure   bool
	now      func() time.Time
}

// NewSessionManager creates a session manager that admits anyone presenting
// password. Cookies are marked Secure when secure is set.
func NewSessionManager(s store.Store, password string, secure bool) *SessionManager {
	return &SessionManager{store: s, password: password, secure: secure, now: time.Now}
}

// Login checks the admin password and, on success, creates a session and sets the cookie.
// An empty configured password never matches.
func (sm *SessionManager) Login(ctx context.Context, w http.ResponseWriter, password string) (*store.Session, error) {
	if sm.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(sm.password)) != 1 {
		return nil, ErrInvalidPassword
	}

	now := sm.now()
	session := &store.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(SessionDuration),
	}
	if err := sm.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// GetSession retrieves the session from the request cookie.
func (sm *SessionManager) GetSession(ctx context.Context, r *http.Request) (*store.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil // No cookie = no session
	}

	return sm.store.GetSession(ctx, cookie.Value)
}

// Logout removes the current session and clears the cookie.
func (sm *SessionManager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := sm.store.DeleteSession(ctx, cookie.Value); err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
	})
	return nil
}

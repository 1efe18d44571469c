// Package session gates the admin pages behind a single shared credential.
//
// A successful login creates a server-side session carrying the admin flag;
// the browser only holds the opaque session ID in a cookie.
package session

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the name of the session cookie.
const CookieName = "courses_session"

// Session is the server-side state of one browser session.
type Session struct {
	ID        string
	Admin     bool
	ExpiresAt time.Time
}

// Store keeps sessions in memory until they expire or are deleted.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	clock    clock.Clock
	ttl      time.Duration
}

// NewStore returns an empty Store whose sessions live for ttl.
func NewStore(clk clock.Clock, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]Session),
		clock:    clk,
		ttl:      ttl,
	}
}

// Create starts a new admin session.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.pruneLocked(now)
	sess := Session{
		ID:        uuid.NewString(),
		Admin:     true,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the live session with the given ID.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return Session{}, false
	}
	return sess, true
}

// Delete ends the session with the given ID.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) pruneLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Credentials is the single shared admin account.
type Credentials struct {
	account      string
	passwordHash []byte
}

// NewCredentials hashes password with the given bcrypt cost.
func NewCredentials(account, password string, cost int) (Credentials, error) {
	if account == "" || password == "" {
		return Credentials{}, errors.NotValidf("empty admin account or password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Credentials{}, errors.Annotate(err, "hash admin password")
	}
	return Credentials{account: account, passwordHash: hash}, nil
}

// Verify checks an account/password pair.
func (c Credentials) Verify(account, password string) error {
	accountOK := subtle.ConstantTimeCompare([]byte(account), []byte(c.account)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !accountOK || passwordErr != nil {
		return errors.Unauthorizedf("invalid account or password")
	}
	return nil
}

// Manager ties sessions to browser cookies.
type Manager struct {
	store  *Store
	creds  Credentials
	secure bool
}

// NewManager returns a Manager. Set secure when the site is served over
// HTTPS so the cookie is never sent in clear text.
func NewManager(store *Store, creds Credentials, secure bool) *Manager {
	return &Manager{store: store, creds: creds, secure: secure}
}

// Current returns the session attached to the request, if any.
func (m *Manager) Current(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}
	return m.store.Get(cookie.Value)
}

// Login verifies the credentials and, on success, starts a session and sets
// its cookie.
func (m *Manager) Login(w http.ResponseWriter, account, password string) (Session, error) {
	if err := m.creds.Verify(account, password); err != nil {
		return Session{}, err
	}
	sess := m.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Logout ends the request's session and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		m.store.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AdminHandler is an HTTP handler that receives the verified admin session.
type AdminHandler func(w http.ResponseWriter, r *http.Request, sess Session)

// RequireAdmin runs next only for requests carrying an admin session and
// redirects everything else to the login page.
func (m *Manager) RequireAdmin(next AdminHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.Current(r)
		if !ok || !sess.Admin {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	})
}

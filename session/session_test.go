package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(c *qt.C) (*Manager, *testclock.Clock) {
	clk := testclock.NewClock(time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC))
	creds, err := NewCredentials("admin", "1234", bcrypt.MinCost)
	c.Assert(err, qt.IsNil)
	return NewManager(NewStore(clk, time.Hour), creds, false), clk
}

func TestStoreExpiry(t *testing.T) {
	c := qt.New(t)
	clk := testclock.NewClock(time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC))
	store := NewStore(clk, time.Hour)

	sess := store.Create()
	c.Assert(sess.Admin, qt.IsTrue)
	c.Assert(sess.ID, qt.Not(qt.Equals), "")

	got, ok := store.Get(sess.ID)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.DeepEquals, sess)

	clk.Advance(time.Hour)
	_, ok = store.Get(sess.ID)
	c.Assert(ok, qt.IsFalse)
	c.Assert(store.Len(), qt.Equals, 0)
}

func TestStoreCreatePrunesExpired(t *testing.T) {
	c := qt.New(t)
	clk := testclock.NewClock(time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC))
	store := NewStore(clk, time.Minute)

	store.Create()
	store.Create()
	clk.Advance(2 * time.Minute)
	store.Create()
	c.Assert(store.Len(), qt.Equals, 1)
}

func TestStoreDelete(t *testing.T) {
	c := qt.New(t)
	store := NewStore(testclock.NewClock(time.Now()), time.Hour)
	sess := store.Create()
	store.Delete(sess.ID)
	_, ok := store.Get(sess.ID)
	c.Assert(ok, qt.IsFalse)
}

func TestCredentialsVerify(t *testing.T) {
	c := qt.New(t)
	creds, err := NewCredentials("admin", "1234", bcrypt.MinCost)
	c.Assert(err, qt.IsNil)

	c.Assert(creds.Verify("admin", "1234"), qt.IsNil)
	c.Assert(errors.Is(creds.Verify("admin", "12345"), errors.Unauthorized), qt.IsTrue)
	c.Assert(errors.Is(creds.Verify("root", "1234"), errors.Unauthorized), qt.IsTrue)
	c.Assert(errors.Is(creds.Verify("", ""), errors.Unauthorized), qt.IsTrue)

	_, err = NewCredentials("admin", "", bcrypt.MinCost)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
}

func TestLoginSetsCookie(t *testing.T) {
	c := qt.New(t)
	m, _ := newTestManager(c)

	rec := httptest.NewRecorder()
	sess, err := m.Login(rec, "admin", "1234")
	c.Assert(err, qt.IsNil)

	cookies := rec.Result().Cookies()
	c.Assert(cookies, qt.HasLen, 1)
	c.Assert(cookies[0].Name, qt.Equals, CookieName)
	c.Assert(cookies[0].Value, qt.Equals, sess.ID)
	c.Assert(cookies[0].HttpOnly, qt.IsTrue)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookies[0])
	got, ok := m.Current(req)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.ID, qt.Equals, sess.ID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := qt.New(t)
	m, _ := newTestManager(c)

	rec := httptest.NewRecorder()
	_, err := m.Login(rec, "admin", "wrong")
	c.Assert(errors.Is(err, errors.Unauthorized), qt.IsTrue)
	c.Assert(rec.Result().Cookies(), qt.HasLen, 0)
	c.Assert(m.store.Len(), qt.Equals, 0)
}

func TestLogoutEndsSession(t *testing.T) {
	c := qt.New(t)
	m, _ := newTestManager(c)

	sess, err := m.Login(httptest.NewRecorder(), "admin", "1234")
	c.Assert(err, qt.IsNil)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
	rec := httptest.NewRecorder()
	m.Logout(rec, req)

	_, ok := m.Current(req)
	c.Assert(ok, qt.IsFalse)
	cookies := rec.Result().Cookies()
	c.Assert(cookies, qt.HasLen, 1)
	c.Assert(cookies[0].MaxAge, qt.Equals, -1)
}

func TestRequireAdmin(t *testing.T) {
	c := qt.New(t)
	m, clk := newTestManager(c)

	var seen Session
	h := m.RequireAdmin(func(w http.ResponseWriter, r *http.Request, sess Session) {
		seen = sess
		w.WriteHeader(http.StatusNoContent)
	})

	c.Run("no session", func(c *qt.C) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
		c.Assert(rec.Code, qt.Equals, http.StatusSeeOther)
		c.Assert(rec.Header().Get("Location"), qt.Equals, "/login")
	})

	c.Run("unknown session", func(c *qt.C) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		c.Assert(rec.Code, qt.Equals, http.StatusSeeOther)
	})

	sess, err := m.Login(httptest.NewRecorder(), "admin", "1234")
	c.Assert(err, qt.IsNil)

	c.Run("admin session", func(c *qt.C) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		c.Assert(rec.Code, qt.Equals, http.StatusNoContent)
		c.Assert(seen.ID, qt.Equals, sess.ID)
	})

	c.Run("expired session", func(c *qt.C) {
		clk.Advance(2 * time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		c.Assert(rec.Code, qt.Equals, http.StatusSeeOther)
	})
}

package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver() *Resolver {
	return NewResolver("test-secret", 7*24*time.Hour, 30*24*time.Hour)
}

func resolve(t *testing.T, rs *Resolver, scope Scope, cookies ...*http.Cookie) (ActorIdentity, *httptest.ResponseRecorder) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	actor, err := rs.Resolve(NewRequestContext(w, r), scope)
	require.NoError(t, err)
	return actor, w
}

func TestResolveMintsGuestTokenOnce(t *testing.T) {
	rs := newResolver()

	actor, w := resolve(t, rs, ScopeCart)
	assert.Equal(t, KindGuest, actor.Kind)
	assert.NotEmpty(t, actor.SessionID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sf_cart_guest", c.Name)
	assert.Equal(t, actor.SessionID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), c.MaxAge)
	assert.False(t, c.Secure) // plain HTTP request

	// Second request presenting the cookie reuses the token and writes
	// nothing.
	again, w2 := resolve(t, rs, ScopeCart, &http.Cookie{Name: c.Name, Value: c.Value})
	assert.Equal(t, actor.SessionID, again.SessionID)
	assert.Empty(t, w2.Result().Cookies())
}

func TestResolveScopesAreIndependent(t *testing.T) {
	rs := newResolver()

	cartActor, _ := resolve(t, rs, ScopeCart)
	addrActor, _ := resolve(t, rs, ScopeAddress)
	orderActor, _ := resolve(t, rs, ScopeOrder)

	assert.NotEqual(t, cartActor.SessionID, addrActor.SessionID)
	assert.NotEqual(t, cartActor.SessionID, orderActor.SessionID)
}

func TestResolveSecureFlagFollowsTLS(t *testing.T) {
	rs := newResolver()

	r := httptest.NewRequest(http.MethodGet, "https://shop.example/cart", nil)
	w := httptest.NewRecorder()
	_, err := rs.Resolve(NewRequestContext(w, r), ScopeCart)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestResolvePrefersValidUserSession(t *testing.T) {
	rs := newResolver()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	rc := NewRequestContext(w, r)
	signed, err := rs.IssueSession(rc, "user-42")
	require.NoError(t, err)

	actor, w2 := resolve(t, rs, ScopeOrder, &http.Cookie{Name: "sf_session", Value: signed})
	assert.Equal(t, KindUser, actor.Kind)
	assert.Equal(t, "user-42", actor.UserID)
	assert.Empty(t, actor.SessionID)
	assert.Empty(t, w2.Result().Cookies())
}

func TestResolveExpiredSessionClearsCookieAndFallsBack(t *testing.T) {
	rs := newResolver()
	rs.Now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	signed, err := rs.IssueSession(NewRequestContext(w, r), "user-42")
	require.NoError(t, err)

	rs.Now = time.Now // token now 30 days old, expired
	actor, w2 := resolve(t, rs, ScopeOrder, &http.Cookie{Name: "sf_session", Value: signed})
	assert.Equal(t, KindGuest, actor.Kind)

	var cleared, minted bool
	for _, c := range w2.Result().Cookies() {
		switch c.Name {
		case "sf_session":
			cleared = c.MaxAge < 0 && c.Value == ""
		case "sf_order_guest":
			minted = c.Value == actor.SessionID
		}
	}
	assert.True(t, cleared, "expired auth cookie must be cleared")
	assert.True(t, minted, "guest token must be minted")
}

func TestResolveMalformedSessionFallsBack(t *testing.T) {
	rs := newResolver()

	actor, w := resolve(t, rs, ScopeAddress, &http.Cookie{Name: "sf_session", Value: "not-a-jwt"})
	assert.Equal(t, KindGuest, actor.Kind)

	names := make([]string, 0, 2)
	for _, c := range w.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "sf_session")
	assert.Contains(t, names, "sf_address_guest")
}

func TestResolveRejectsForeignSignature(t *testing.T) {
	other := NewResolver("other-secret", 7*24*time.Hour, 30*24*time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	signed, err := other.IssueSession(NewRequestContext(httptest.NewRecorder(), r), "user-42")
	require.NoError(t, err)

	rs := newResolver()
	actor, _ := resolve(t, rs, ScopeOrder, &http.Cookie{Name: "sf_session", Value: signed})
	assert.Equal(t, KindGuest, actor.Kind)
}

type brokenContext struct{}

func (brokenContext) Cookie(string) (string, error) { return "", errors.New("substrate down") }
func (brokenContext) SetCookie(*http.Cookie) error  { return errors.New("substrate down") }
func (brokenContext) IsSecure() bool                { return false }

func TestResolveIdentityUnavailable(t *testing.T) {
	rs := newResolver()

	_, err := rs.Resolve(nil, ScopeCart)
	assert.ErrorIs(t, err, ErrIdentityUnavailable)

	_, err = rs.Resolve(brokenContext{}, ScopeCart)
	assert.ErrorIs(t, err, ErrIdentityUnavailable)
}

func TestPartitionKeys(t *testing.T) {
	u := UserActor("abc")
	userID, sessionID := u.PartitionKeys()
	require.NotNil(t, userID)
	assert.Equal(t, "abc", *userID)
	assert.Nil(t, sessionID)

	g := GuestActor("abc")
	userID, sessionID = g.PartitionKeys()
	assert.Nil(t, userID)
	require.NotNil(t, sessionID)
	assert.Equal(t, "abc", *sessionID)
}

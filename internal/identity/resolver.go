package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope names the feature area a guest token belongs to. Each scope keeps
// its own cookie namespace; tokens are created independently per scope.
type Scope string

const (
	ScopeAddress Scope = "address"
	ScopeCart    Scope = "cart"
	ScopeOrder   Scope = "order"
)

const authCookieName = "sf_session"

var guestCookieNames = map[Scope]string{
	ScopeAddress: "sf_address_guest",
	ScopeCart:    "sf_cart_guest",
	ScopeOrder:   "sf_order_guest",
}

var ErrIdentityUnavailable = errors.New("identity unavailable")

// Resolver turns an incoming request into a canonical ActorIdentity. A
// valid signed session cookie wins; otherwise the request falls back to the
// scope's guest token, minting one when absent.
type Resolver struct {
	Secret          []byte
	UserSessionTTL  time.Duration
	GuestSessionTTL time.Duration
	Now             func() time.Time
}

func NewResolver(secret string, userTTL, guestTTL time.Duration) *Resolver {
	return &Resolver{
		Secret:          []byte(secret),
		UserSessionTTL:  userTTL,
		GuestSessionTTL: guestTTL,
		Now:             time.Now,
	}
}

// Resolve inspects the auth cookie first. Expired or malformed tokens are
// cleared and the request continues as a guest; a missing guest token is
// generated and set as a durable cookie. Cookie writes only happen on those
// two paths, resolution is otherwise read-only.
func (rs *Resolver) Resolve(rc RequestContext, scope Scope) (ActorIdentity, error) {
	if rc == nil {
		return ActorIdentity{}, ErrIdentityUnavailable
	}

	raw, err := rc.Cookie(authCookieName)
	switch {
	case err == nil:
		if userID, ok := rs.verifySession(raw); ok {
			return UserActor(userID), nil
		}
		// Present but expired/malformed: clear and continue as guest.
		if err := rc.SetCookie(rs.expiredCookie(authCookieName)); err != nil {
			return ActorIdentity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
		}
	case errors.Is(err, ErrNoCookie):
		// No auth session, guest path.
	default:
		return ActorIdentity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	return rs.ResolveGuest(rc, scope)
}

// ResolveGuest resolves the scope's guest token regardless of any auth
// session. Cart identity uses this directly: carts always ride on the
// session cookie, logged-in or not.
func (rs *Resolver) ResolveGuest(rc RequestContext, scope Scope) (ActorIdentity, error) {
	name, ok := guestCookieNames[scope]
	if !ok {
		return ActorIdentity{}, fmt.Errorf("%w: unknown scope %q", ErrIdentityUnavailable, scope)
	}

	token, err := rc.Cookie(name)
	if err == nil && token != "" {
		return GuestActor(token), nil
	}
	if err != nil && !errors.Is(err, ErrNoCookie) {
		return ActorIdentity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	token, err = newSessionToken()
	if err != nil {
		return ActorIdentity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	if err := rc.SetCookie(rs.guestCookie(name, token, rc.IsSecure())); err != nil {
		return ActorIdentity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	return GuestActor(token), nil
}

// IssueSession signs a user session token for the auth cookie. The login
// mechanics live outside this service; this is the boundary it owns.
func (rs *Resolver) IssueSession(rc RequestContext, userID string) (string, error) {
	now := rs.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(rs.UserSessionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(rs.Secret)
	if err != nil {
		return "", err
	}
	err = rc.SetCookie(&http.Cookie{
		Name:     authCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(rs.UserSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   rc.IsSecure(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	return signed, nil
}

func (rs *Resolver) verifySession(raw string) (string, bool) {
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return rs.Secret, nil
	}, jwt.WithTimeFunc(rs.Now))
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (rs *Resolver) guestCookie(name, token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(rs.GuestSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

func (rs *Resolver) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

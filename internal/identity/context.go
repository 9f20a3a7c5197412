package identity

import (
	"errors"
	"net/http"
)

// ErrNoCookie reports that the named cookie is absent from the request.
// Anything else returned by a RequestContext is treated as a substrate
// failure and surfaces as ErrIdentityUnavailable from Resolve.
var ErrNoCookie = errors.New("cookie not present")

// RequestContext is the cookie read/write capability a request hands to the
// resolver and, through it, to every store call. It replaces ambient
// request state so the resolver stays testable without an HTTP layer.
type RequestContext interface {
	Cookie(name string) (string, error)
	SetCookie(c *http.Cookie) error
	IsSecure() bool
}

type httpRequestContext struct {
	w http.ResponseWriter
	r *http.Request
}

// NewRequestContext wraps a live request/response pair as a RequestContext.
func NewRequestContext(w http.ResponseWriter, r *http.Request) RequestContext {
	return &httpRequestContext{w: w, r: r}
}

func (c *httpRequestContext) Cookie(name string) (string, error) {
	ck, err := c.r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrNoCookie
	}
	if err != nil {
		return "", err
	}
	return ck.Value, nil
}

func (c *httpRequestContext) SetCookie(ck *http.Cookie) error {
	http.SetCookie(c.w, ck)
	return nil
}

func (c *httpRequestContext) IsSecure() bool {
	if c.r.TLS != nil {
		return true
	}
	return c.r.Header.Get("X-Forwarded-Proto") == "https"
}

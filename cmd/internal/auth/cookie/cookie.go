// Package cookie moves tokens and the session id between server and browser.
//
// Every cookie written here is HttpOnly, Secure and SameSite=Strict. Callers
// choose only the name, the value and optionally an expiry.
package cookie

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	AccessCookie  = "token"
	RefreshCookie = "refresh_token"
	SessionCookie = "session"
)

// ErrMissingCookie is returned when a request lacks a cookie or it is empty.
var ErrMissingCookie = errors.New("missing cookie")

// Transport scopes cookies to a path and domain.
type Transport struct {
	Path   string
	Domain string
}

// DefaultTransport scopes cookies to the whole host.
func DefaultTransport() Transport { return Transport{Path: "/"} }

// TransportFromEnv reads AUTH_COOKIE_PATH and AUTH_COOKIE_DOMAIN.
func TransportFromEnv() Transport {
	t := DefaultTransport()
	if v := strings.TrimSpace(os.Getenv("AUTH_COOKIE_PATH")); v != "" {
		t.Path = v
	}
	t.Domain = strings.TrimSpace(os.Getenv("AUTH_COOKIE_DOMAIN"))
	return t
}

func (t Transport) base(name, value string) *http.Cookie {
	path := t.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   t.Domain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// Encode returns a Set-Cookie header value for a browser-session cookie.
func (t Transport) Encode(name, value string) string {
	return t.base(name, value).String()
}

// EncodeUntil is Encode with an absolute expiry.
func (t Transport) EncodeUntil(name, value string, expires time.Time) string {
	c := t.base(name, value)
	c.Expires = expires.UTC()
	return c.String()
}

// Expire returns a Set-Cookie header value that deletes name.
func (t Transport) Expire(name string) string {
	c := t.base(name, "")
	c.Expires = time.Unix(0, 0).UTC()
	c.MaxAge = -1
	return c.String()
}

// Decode returns the value of the named cookie on r.
func (t Transport) Decode(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", ErrMissingCookie
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", ErrMissingCookie
	}
	return v, nil
}

// Set writes every header value in cookies to w.
func Set(w http.ResponseWriter, cookies []string) {
	for _, c := range cookies {
		w.Header().Add("Set-Cookie", c)
	}
}

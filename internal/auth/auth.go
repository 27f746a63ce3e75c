// Package auth implements the mock login: a fixed user directory, a shared
// password and two cookies that carry the signed-in user between requests.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"techbiz/internal/core"
)

const (
	CookieAuth = "auth"
	CookieUser = "user"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Session is the user resolved from the request cookies.
type Session struct {
	User string
	Role core.Role
}

// CanEdit reports whether the session may mutate records.
func (s Session) CanEdit() bool { return s.Role.CanEdit() }

// Directory knows the configured users and issues session cookies.
type Directory struct {
	roles    map[string]core.Role
	password string
	maxAge   time.Duration
}

// NewDirectory builds the user table. A name listed as admin is never demoted
// by also appearing in the read-only list.
func NewDirectory(admins, readOnly []string, password string, maxAge time.Duration) *Directory {
	roles := make(map[string]core.Role, len(admins)+len(readOnly))
	for _, u := range readOnly {
		if u = strings.TrimSpace(u); u != "" {
			roles[u] = core.RoleReadOnly
		}
	}
	for _, u := range admins {
		if u = strings.TrimSpace(u); u != "" {
			roles[u] = core.RoleAdmin
		}
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Directory{roles: roles, password: password, maxAge: maxAge}
}

// Role returns the role of a known user.
func (d *Directory) Role(user string) (core.Role, bool) {
	r, ok := d.roles[user]
	return r, ok
}

// Login checks the credentials and returns the session to store.
func (d *Directory) Login(username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	role, known := d.roles[username]
	ok := subtle.ConstantTimeCompare([]byte(password), []byte(d.password)) == 1
	if !known || !ok {
		return Session{}, ErrInvalidCredentials
	}
	return Session{User: username, Role: role}, nil
}

// SetSession writes the auth and user cookies.
func (d *Directory) SetSession(w http.ResponseWriter, r *http.Request, s Session) {
	maxAge := int(d.maxAge / time.Second)
	http.SetCookie(w, d.cookie(r, CookieAuth, "true", maxAge))
	http.SetCookie(w, d.cookie(r, CookieUser, url.QueryEscape(s.User), maxAge))
}

// ClearSession expires both cookies.
func (d *Directory) ClearSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, d.cookie(r, CookieAuth, "", -1))
	http.SetCookie(w, d.cookie(r, CookieUser, "", -1))
}

func (d *Directory) cookie(r *http.Request, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionFromRequest resolves the cookies. Both must be present and the user
// must still be in the directory.
func (d *Directory) SessionFromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(CookieAuth)
	if err != nil || c.Value != "true" {
		return Session{}, false
	}
	uc, err := r.Cookie(CookieUser)
	if err != nil {
		return Session{}, false
	}
	user, err := url.QueryUnescape(uc.Value)
	if err != nil {
		return Session{}, false
	}
	role, ok := d.roles[user]
	if !ok {
		return Session{}, false
	}
	return Session{User: user, Role: role}, true
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by the gate.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

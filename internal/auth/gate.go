package auth

import (
	"net/http"
	"net/url"
	"strings"
)

var publicPrefixes = []string{"/static/"}

var publicPaths = map[string]bool{
	"/login":       true,
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
	"/favicon.ico": true,
}

// IsPublic reports whether path is reachable without a session.
func IsPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Gate redirects anonymous requests to the login page and stores the session
// of signed-in users in the request context.
func (d *Directory) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		s, ok := d.SessionFromRequest(r)
		if !ok {
			target := LoginURL(r.URL.RequestURI())
			if r.Header.Get("HX-Request") == "true" {
				// htmx swaps response bodies, so ask it to navigate instead
				w.Header().Set("HX-Redirect", target)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// LoginURL is the login page carrying next as the post-login destination.
func LoginURL(next string) string {
	next = SafeNext(next)
	if next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext keeps a post-login redirect on this site. Anything that is not a
// local absolute path becomes "/".
func SafeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") || strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if u.Path == "/login" || u.Path == "/logout" {
		return "/"
	}
	return next
}

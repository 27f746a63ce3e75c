package http

import (
	"errors"
	"net/http"

	"techbiz/internal/auth"
	"techbiz/internal/core"
	"techbiz/internal/log"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"))
	if _, ok := s.users.SessionFromRequest(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{Next: next})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		errorFragment(http.StatusBadRequest, "Invalid form").Write(w)
		return
	}
	username := core.Sanitize(r.PostForm.Get("username"))
	next := auth.SafeNext(r.PostForm.Get("next"))
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	sess, err := s.users.Login(username, r.PostForm.Get("password"))
	if err != nil {
		s.appMetrics.loginFailures.Add(1)
		errorType := log.ErrorTypeInternal
		if errors.Is(err, auth.ErrInvalidCredentials) {
			errorType = log.ErrorTypeAuth
		}
		logger.WarnContext(r.Context(), "Login rejected",
			log.FieldUser, username,
			"error_type", errorType)
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{
			Username: username,
			Next:     next,
			Error:    "Invalid username or password",
		})
		return
	}

	s.users.SetSession(w, r, sess)
	logger.InfoContext(r.Context(), "User signed in",
		log.FieldUser, sess.User,
		log.FieldRole, string(sess.Role))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.FromContext(r.Context()); ok {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "User signed out",
			log.FieldUser, sess.User)
	}
	s.users.ClearSession(w, r)
	if r.Header.Get("HX-Request") == "true" {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

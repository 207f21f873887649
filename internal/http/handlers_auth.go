package http

import (
	"errors"
	"net/http"
	"strings"

	"smartcash/internal/api"
	"smartcash/internal/core"
	"smartcash/internal/log"
)

type authFormData struct {
	pageData
	Name  string
	Email string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.sessions.Current() != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", authFormData{pageData: s.newPageData(r, "Sign in")})
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	data := authFormData{pageData: s.newPageData(r, "Sign in"), Email: email}

	if err := validateCredentials(email, password); err != nil {
		data.Error = err.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "login.html", data)
		return
	}

	user, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		var authErr *api.AuthError
		if errors.As(err, &authErr) {
			data.Error = authErr.Message
			if data.Error == "" {
				data.Error = "Invalid email or password."
			}
			s.renderStatus(w, r, http.StatusUnauthorized, "login.html", data)
			return
		}
		s.logger.ErrorContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err.Error())
		data.Error = "The server could not be reached. Please try again."
		s.renderStatus(w, r, http.StatusBadGateway, "login.html", data)
		return
	}

	if _, err := s.sessions.Login(r.Context(), user); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to persist session",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err.Error())
		data.Error = "Could not start a session. Please try again."
		s.renderStatus(w, r, http.StatusInternalServerError, "login.html", data)
		return
	}

	redirectWithToast(w, r, "/", "welcome")
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signup.html", authFormData{pageData: s.newPageData(r, "Create account")})
	case http.MethodPost:
		s.handleSignupSubmit(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleSignupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := sanitizeInput(r.Form.Get("name"))
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	data := authFormData{pageData: s.newPageData(r, "Create account"), Name: name, Email: email}

	if err := validateRegistration(name, email, password); err != nil {
		data.Error = err.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "signup.html", data)
		return
	}

	user, err := s.auth.Register(r.Context(), name, email, password)
	if err != nil {
		var authErr *api.AuthError
		if errors.As(err, &authErr) {
			data.Error = authErr.Message
			if data.Error == "" {
				data.Error = "Registration was rejected."
			}
			s.renderStatus(w, r, http.StatusUnprocessableEntity, "signup.html", data)
			return
		}
		s.logger.ErrorContext(r.Context(), "Registration failed",
			log.FieldOperation, log.OpRegister,
			log.FieldError, err.Error())
		data.Error = "The server could not be reached. Please try again."
		s.renderStatus(w, r, http.StatusBadGateway, "signup.html", data)
		return
	}

	// A fresh account goes straight into a session.
	if _, err := s.sessions.Login(r.Context(), user); err != nil {
		redirectWithToast(w, r, "/login", "signin")
		return
	}
	redirectWithToast(w, r, "/", "registered")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Logout failed",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err.Error())
	}
	redirectWithToast(w, r, "/login", "loggedout")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		data := authFormData{pageData: s.newPageData(r, "Profile"), Name: sess.User.Name, Email: sess.User.Email}
		s.render(w, r, "profile.html", data)
	case http.MethodPost:
		s.handleProfileSubmit(w, r, sess.User)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleProfileSubmit(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := sanitizeInput(r.Form.Get("name"))
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	data := authFormData{pageData: s.newPageData(r, "Profile"), Name: name, Email: email}

	if err := validateRegistration(name, email, password); err != nil {
		data.Error = err.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "profile.html", data)
		return
	}

	updated, err := s.auth.UpdateUser(r.Context(), core.User{ID: user.ID, Name: name, Email: email}, password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Profile update failed",
			log.FieldOperation, log.OpUpdate,
			log.FieldUserID, user.ID,
			log.FieldError, err.Error())
		data.Error = "Could not update the profile. Please try again."
		s.renderStatus(w, r, http.StatusBadGateway, "profile.html", data)
		return
	}

	// Swap the identity in place; the session keeps its original expiry.
	if err := s.sessions.UpdateUser(r.Context(), updated); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to refresh session after profile update",
			log.FieldOperation, log.OpUpdate,
			log.FieldError, err.Error())
	}
	redirectWithToast(w, r, "/profile", "profile")
}

func validateCredentials(email, password string) error {
	if !strings.Contains(email, "@") {
		return core.ErrInvalidEmail
	}
	if password == "" {
		return core.ErrEmptyPassword
	}
	return nil
}

func validateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return core.ErrEmptyName
	}
	return validateCredentials(email, password)
}

package http

import (
	"net/http"
	"strings"

	"dotproduct/internal/auth"
	"dotproduct/internal/core"
)

type registerResponse struct {
	Detail string       `json:"detail"`
	User   core.Profile `json:"user"`
}

type loginResponse struct {
	Detail    string       `json:"detail"`
	User      core.Profile `json:"user"`
	CSRFToken string       `json:"csrf_token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.auth.Register(r.Context(), auth.RegisterRequest{
		Username:  strings.TrimSpace(p.plainString("username")),
		Email:     strings.TrimSpace(p.plainString("email")),
		Password:  p.plainString("password"),
		FirstName: strings.TrimSpace(p.plainString("first_name")),
		LastName:  strings.TrimSpace(p.plainString("last_name")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Body(registerResponse{Detail: "User created successfully", User: profile}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.auth.Login(r.Context(), strings.TrimSpace(p.plainString("username")), p.plainString("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	b := NewJSONResponse().Body(loginResponse{
		Detail:    "Login successful",
		User:      res.Profile,
		CSRFToken: res.CSRFToken,
	})
	for _, c := range s.sessionCookies(res.Token, res.CSRFToken, res.ExpiresAt) {
		b.Cookie(c)
	}
	b.Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(s.cookies.session)
	if err != nil {
		writeError(w, r, &core.PermissionError{})
		return
	}
	if err := s.auth.Logout(r.Context(), c.Value); err != nil {
		writeError(w, r, err)
		return
	}

	b := NewJSONResponse().Detail("Logout successful")
	for _, c := range s.clearedCookies() {
		b.Cookie(c)
	}
	b.Write(w)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(identityFrom(r.Context()).User.Profile()).Write(w)
}

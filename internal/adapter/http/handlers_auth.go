// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"errors"
	"mime"
	"net/http"

	"weighttracker/internal/app"
	"weighttracker/internal/domain"
)

const stateCookie = "oauth_state"

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in app.RegisterInput
	if err := parseJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tok, err := s.auth.IssueToken(r.Context(), user.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"user":         user,
	})
}

// handleLogin accepts a JSON body or the form-encoded username/password pair
// sent by OAuth2 password-flow clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := parseJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid form"))
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	tok, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email  string   `json:"email"`
		Height *float64 `json:"height"`
		Age    *int     `json:"age"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user := userFromContext(r)
	updated, err := s.auth.UpdateProfile(r.Context(), user.ID, domain.Profile{
		Email:    body.Email,
		HeightCM: body.Height,
		Age:      body.Age,
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		writeError(w, http.StatusConflict, errors.New("email already in use"))
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSSOConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.opts.SSO != nil,
	})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.SSO == nil {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.opts.SSO.OAuth2.AuthCodeURL(state), http.StatusFound)
}

// handleSSOCallback completes the code flow and answers with a bearer token
// for the verified identity, provisioning the user on first login.
func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	sso := s.opts.SSO
	if sso == nil {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		writeError(w, http.StatusBadRequest, errors.New("invalid state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, MaxAge: -1, Path: "/"})

	oauthTok, err := sso.OAuth2.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeUnauthorized(w)
		return
	}
	rawIDToken, ok := oauthTok.Extra("id_token").(string)
	if !ok {
		writeUnauthorized(w)
		return
	}
	idToken, err := sso.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil || idToken.Subject == "" {
		writeUnauthorized(w)
		return
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		writeUnauthorized(w)
		return
	}

	// Accounts are keyed on the issuer-scoped subject. preferred_username
	// and email only name the account on first login.
	tok, err := s.auth.LoginWithSSO(r.Context(), app.SSOIdentity{
		Subject:  idToken.Issuer + "|" + idToken.Subject,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		writeError(w, http.StatusConflict, errors.New("username or email already belongs to another account"))
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

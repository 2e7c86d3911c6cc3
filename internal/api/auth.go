package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/auth"
)

// signUpRequest is the request body for POST /auth/sign-up.
type signUpRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceCode string `json:"device_code"`
}

// tokenResponse is returned by login and sign-up.
type tokenResponse struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	DeviceID    string `json:"device_id"`
}

// handleLogin authenticates HTTP Basic credentials and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="phaselink"`)
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "basic credentials required")
		return
	}

	token, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", `Basic realm="phaselink"`)
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "username", username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.recordAudit(&audit.Entry{Action: audit.ActionLogin, Username: username, DeviceID: token.DeviceID})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "bearer",
		DeviceID:    token.DeviceID,
	})
}

// handleSignUp creates an account bound to the device whose pairing code is
// presented. Fields are read from a JSON body, or from the query string when
// no body is sent.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	} else {
		q := r.URL.Query()
		req = signUpRequest{
			Username:   q.Get("username"),
			Password:   q.Get("password"),
			DeviceCode: q.Get("device_code"),
		}
	}

	token, err := s.auth.SignUp(r.Context(), req.Username, req.Password, req.DeviceCode)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidDeviceCode):
		writeBadRequest(w, "invalid device code")
		return
	case errors.Is(err, auth.ErrInvalidUsername):
		writeBadRequest(w, "username must be 1-64 characters: letters, digits, dot, hyphen, underscore")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeBadRequest(w, "password must be at least 8 characters")
		return
	case errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, "username already exists")
		return
	default:
		s.logger.Error("sign-up failed", "username", req.Username, "error", err)
		writeInternalError(w, "sign-up failed")
		return
	}

	s.logger.Info("account created", "username", req.Username, "device_id", token.DeviceID)
	s.recordAudit(&audit.Entry{Action: audit.ActionSignUp, Username: req.Username, DeviceID: token.DeviceID})
	writeJSON(w, http.StatusCreated, tokenResponse{
		Message:     "User created successfully",
		AccessToken: token.AccessToken,
		TokenType:   "bearer",
		DeviceID:    token.DeviceID,
	})
}

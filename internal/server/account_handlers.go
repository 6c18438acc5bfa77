package server

import (
	"errors"
	"net/http"
	"time"

	accountservice "zetsuserv/internal/account/service"
	"zetsuserv/internal/credential"
	"zetsuserv/internal/telemetry"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type accountResponse struct {
	AccountID        string `json:"account_id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	Verified         bool   `json:"verified"`
	VerificationSent bool   `json:"verification_sent,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, accountservice.ErrEmailAlreadyRegistered):
		writeError(w, http.StatusConflict, "email already registered")
		return
	case err != nil && errors.Is(err, credential.ErrDeliveryFailed):
		// Account and code are committed; the user can resend.
		s.emitEvent(r, "verification_delivery_failed", account.ID, "")
		writeJSON(w, http.StatusCreated, accountResponse{
			AccountID: account.ID,
			Email:     account.Email,
			Name:      account.Name,
		})
		return
	case err != nil && account == nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "account_registered", account.ID, "")
	writeJSON(w, http.StatusCreated, accountResponse{
		AccountID:        account.ID,
		Email:            account.Email,
		Name:             account.Name,
		VerificationSent: true,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, accountservice.ErrInvalidCredentials):
		s.emitEvent(r, "login_failed", "", "")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, accountservice.ErrEmailNotVerified):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":                 "email not verified",
			"verification_required": true,
		})
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "login_succeeded", account.ID, "")
	writeJSON(w, http.StatusOK, accountResponse{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Verified:  true,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.accounts.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		s.emitEvent(r, "email_verification_failed", "", "")
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "email_verified", account.ID, "")
	writeJSON(w, http.StatusOK, accountResponse{
		AccountID: account.ID,
		Email:     account.Email,
		Verified:  true,
	})
}

type resendRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.accounts.ResendVerification(r.Context(), req.Email)
	switch {
	case errors.Is(err, accountservice.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "email already verified")
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "verification_resent", "", "")
	writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (s *Server) emitEvent(r *http.Request, eventType, accountID, orderCode string) {
	sessionID, _ := SessionID(r.Context())
	telemetry.EmitAsync(s.emitter, r.Context(), &telemetry.Event{
		EventType: eventType,
		Source:    "http_handler",
		AccountID: accountID,
		OrderCode: orderCode,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	})
}

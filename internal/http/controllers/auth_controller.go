// Package controllers contains the HTTP controllers of the public API.
package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/dramgate/internal/authn"
	"github.com/dropDatabas3/dramgate/internal/http/dto"
	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
)

const maxBodyBytes = 4 << 10 // 4KB, these are small JSON payloads

// AuthController handles login and the second-factor challenge.
type AuthController struct {
	service *authn.Service
}

// NewAuthController creates the controller.
func NewAuthController(s *authn.Service) *AuthController {
	return &AuthController{service: s}
}

// Login handles POST /v1/auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.login"))

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("identifier and password are required"))
		return
	}

	result, err := c.service.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	resp := dto.LoginResponse{RequiresSecondFactor: result.RequiresSecondFactor}
	if result.RequiresSecondFactor {
		resp.ChallengeToken = result.ChallengeToken
	} else {
		resp.SessionToken = result.SessionToken
		resp.ExpiresInSeconds = int64(result.Session.Timeout.Seconds())
	}

	writeJSON(w, http.StatusOK, resp)
}

// Challenge handles POST /v1/auth/mfa/challenge.
func (c *AuthController) Challenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.challenge"))

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if strings.TrimSpace(req.ChallengeToken) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("challenge_token is required"))
		return
	}
	if strings.TrimSpace(req.Code) == "" && strings.TrimSpace(req.BackupCode) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code or backup_code is required"))
		return
	}

	result, err := c.service.CompleteSecondFactor(ctx, req.ChallengeToken, req.Code, req.BackupCode)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.ChallengeResponse{
		SessionToken:     result.SessionToken,
		ExpiresInSeconds: int64(result.Session.Timeout.Seconds()),
	})
}

// writeJSON serializa una respuesta JSON con el status dado.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/dramgate/internal/http/dto"
	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	"github.com/dropDatabas3/dramgate/internal/http/middlewares"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
	"github.com/dropDatabas3/dramgate/internal/twofactor"
)

// MFAController handles enrollment and management of the second factor.
// Every endpoint requires an authenticated session (WithSessionAuth).
type MFAController struct {
	service twofactor.Service
}

// NewMFAController creates the controller.
func NewMFAController(s twofactor.Service) *MFAController {
	return &MFAController{service: s}
}

// Enroll handles POST /v1/mfa/enroll.
func (c *MFAController) Enroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.enroll"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("password is required"))
		return
	}

	result, err := c.service.Begin(ctx, userID, req.Password)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	// The response carries the raw secret. no-store is set by middleware,
	// reinforced here.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.EnrollResponse{
		SecretBase32: result.SecretBase32,
		OTPAuthURL:   result.ProvisioningURI,
	})
}

// Verify handles POST /v1/mfa/verify.
func (c *MFAController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.verify"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code is required"))
		return
	}

	result, err := c.service.Verify(ctx, userID, req.Code)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.VerifyResponse{
		Enabled:     true,
		BackupCodes: result.BackupCodes,
	})
}

// Cancel handles POST /v1/mfa/cancel.
func (c *MFAController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	if err := c.service.Cancel(ctx, userID); err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /v1/mfa/status.
func (c *MFAController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	st, err := c.service.Status(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.MFAStatusResponse{
		Enabled:         st.Enabled,
		SitewideEnabled: st.SitewideEnabled,
		State:           string(st.State),
		BackupCodesLeft: st.BackupCodesLeft,
	})
}

// Disable handles POST /v1/mfa/disable.
func (c *MFAController) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.disable"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.DisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("password is required"))
		return
	}

	if err := c.service.Disable(ctx, userID, req.Password); err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.DisableResponse{Disabled: true})
}

// RotateBackupCodes handles POST /v1/mfa/backup-codes/rotate.
func (c *MFAController) RotateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.rotate_codes"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.RotateBackupCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("password is required"))
		return
	}

	result, err := c.service.RegenerateBackupCodes(ctx, userID, req.Password)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.RotateBackupCodesResponse{BackupCodes: result.BackupCodes})
}

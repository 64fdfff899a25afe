package controllers

import (
	"errors"

	"github.com/dropDatabas3/dramgate/internal/authn"
	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	"github.com/dropDatabas3/dramgate/internal/session"
	"github.com/dropDatabas3/dramgate/internal/twofactor"
)

// mapServiceError traduce los sentinels de la capa de servicios al error
// HTTP correspondiente. Todo lo no reconocido colapsa en un 500 genérico
// conservando la causa para los logs.
func mapServiceError(err error) *httperrors.AppError {
	switch {
	case errors.Is(err, twofactor.ErrFeatureDisabled):
		return httperrors.ErrFeatureDisabled
	case errors.Is(err, twofactor.ErrInvalidPassword),
		errors.Is(err, authn.ErrInvalidCredentials):
		return httperrors.ErrInvalidCredentials
	case errors.Is(err, twofactor.ErrMalformedCode):
		return httperrors.ErrMalformedCode
	case errors.Is(err, twofactor.ErrInvalidCode):
		return httperrors.ErrInvalidCode
	case errors.Is(err, twofactor.ErrNotEnrolled):
		return httperrors.ErrNotEnrolled
	case errors.Is(err, twofactor.ErrNotEnabled):
		return httperrors.ErrNotEnabled
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		return httperrors.ErrAlreadyEnabled
	case errors.Is(err, twofactor.ErrStaleEnrollment):
		return httperrors.ErrStaleEnrollment
	case errors.Is(err, twofactor.ErrUserNotFound):
		return httperrors.ErrUserNotFound
	case errors.Is(err, twofactor.ErrCryptoFailed):
		return httperrors.ErrCryptoFailure
	case errors.Is(err, authn.ErrChallengeExpired):
		return httperrors.ErrChallengeExpired
	case errors.Is(err, session.ErrSessionExpired):
		return httperrors.ErrSessionExpired
	case errors.Is(err, session.ErrTokenInvalid):
		return httperrors.ErrTokenInvalid
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}

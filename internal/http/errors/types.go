package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, no se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// FromError convierte un error genérico en AppError. Si no lo es, devuelve
// un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalle al error. Devuelve una COPIA para no mutar las
// variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega la causa original. Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// 400 Bad Request - Validación
var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Faltan campos requeridos en la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMalformedCode = &AppError{
		Code:       "MALFORMED_CODE",
		Message:    "El código no tiene el formato esperado.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

// 401 Unauthorized - Autenticación
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCode = &AppError{
		Code:       "INVALID_CODE",
		Message:    "El código de verificación es inválido.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrChallengeExpired = &AppError{
		Code:       "CHALLENGE_EXPIRED",
		Message:    "El desafío de segundo factor expiró o no existe.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "La sesión ha expirado, por favor inicie sesión nuevamente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "El token de sesión es inválido o está malformado.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// 403 Forbidden - Feature deshabilitada
var (
	ErrFeatureDisabled = &AppError{
		Code:       "FEATURE_DISABLED",
		Message:    "La autenticación de dos factores está deshabilitada en este servidor.",
		HTTPStatus: http.StatusForbidden,
	}
)

// 404 Not Found
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "El usuario especificado no existe.",
		HTTPStatus: http.StatusNotFound,
	}
)

// 405 Method Not Allowed
var (
	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// 409 Conflict - Errores de estado
var (
	ErrNotEnrolled = &AppError{
		Code:       "NOT_ENROLLED",
		Message:    "No hay un enrolamiento de segundo factor en curso.",
		HTTPStatus: http.StatusConflict,
	}

	ErrNotEnabled = &AppError{
		Code:       "TWO_FACTOR_NOT_ENABLED",
		Message:    "La autenticación de dos factores no está habilitada.",
		HTTPStatus: http.StatusConflict,
	}

	ErrAlreadyEnabled = &AppError{
		Code:       "TWO_FACTOR_ALREADY_ENABLED",
		Message:    "La autenticación de dos factores ya está habilitada.",
		HTTPStatus: http.StatusConflict,
	}

	ErrStaleEnrollment = &AppError{
		Code:       "STALE_ENROLLMENT",
		Message:    "El enrolamiento fue reemplazado por un intento más reciente.",
		HTTPStatus: http.StatusConflict,
	}
)

// 422 Unprocessable Entity
var (
	ErrPasswordTooWeak = &AppError{
		Code:       "PASSWORD_TOO_WEAK",
		Message:    "La contraseña no cumple con los requisitos de seguridad.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// 500+ Server Errors
var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrCryptoFailure = &AppError{
		Code:       "CRYPTO_FAILURE",
		Message:    "Falló una operación criptográfica.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

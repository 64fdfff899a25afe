package controllers

import (
	"net/http"

	"github.com/dropDatabas3/dramgate/internal/http/dto"
	"github.com/dropDatabas3/dramgate/internal/security/password"
)

// ConfigController expone la configuración pública (política de passwords).
type ConfigController struct {
	requirements password.Requirements
}

// NewConfigController crea el controller con la política activa.
func NewConfigController(req password.Requirements) *ConfigController {
	return &ConfigController{requirements: req}
}

// PasswordRequirements handles GET /v1/config/password-requirements.
// Público a propósito: el frontend lo consulta para validar en vivo.
func (c *ConfigController) PasswordRequirements(w http.ResponseWriter, r *http.Request) {
	req := c.requirements
	writeJSON(w, http.StatusOK, dto.PasswordRequirementsResponse{
		MinLength:           req.MinLength,
		MaxLength:           req.MaxLength,
		ComplexityRequired:  req.ComplexityRequired,
		RequireUppercase:    req.RequireUpper,
		RequireLowercase:    req.RequireLower,
		RequireNumbers:      req.RequireDigit,
		RequireSpecialChars: req.RequireSymbol,
		SpecialChars:        req.AllowedSymbols,
	})
}

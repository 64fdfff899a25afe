package dto

// PasswordRequirementsResponse is the result of
// GET /v1/config/password-requirements. It mirrors the active policy so
// clients can render hints before submitting.
type PasswordRequirementsResponse struct {
	MinLength           int    `json:"min_length"`
	MaxLength           int    `json:"max_length"`
	ComplexityRequired  bool   `json:"complexity_required"`
	RequireUppercase    bool   `json:"require_uppercase"`
	RequireLowercase    bool   `json:"require_lowercase"`
	RequireNumbers      bool   `json:"require_numbers"`
	RequireSpecialChars bool   `json:"require_special_chars"`
	SpecialChars        string `json:"special_chars"`
}

package dto

// EnrollRequest is the body of POST /v1/mfa/enroll.
type EnrollRequest struct {
	Password string `json:"password"`
}

// EnrollResponse carries the enrollment material, shown exactly once.
type EnrollResponse struct {
	SecretBase32 string `json:"secret_base32"`
	OTPAuthURL   string `json:"otpauth_url"`
}

// VerifyRequest is the body of POST /v1/mfa/verify.
type VerifyRequest struct {
	Code string `json:"code"`
}

// VerifyResponse carries the fresh backup codes, returned exactly once.
type VerifyResponse struct {
	Enabled     bool     `json:"enabled"`
	BackupCodes []string `json:"backup_codes"`
}

// DisableRequest is the body of POST /v1/mfa/disable.
type DisableRequest struct {
	Password string `json:"password"`
}

// DisableResponse confirms the second factor was turned off.
type DisableResponse struct {
	Disabled bool `json:"disabled"`
}

// RotateBackupCodesRequest is the body of POST /v1/mfa/backup-codes/rotate.
type RotateBackupCodesRequest struct {
	Password string `json:"password"`
}

// RotateBackupCodesResponse carries the replacement set, returned exactly once.
type RotateBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// MFAStatusResponse is the result of GET /v1/mfa/status.
type MFAStatusResponse struct {
	Enabled         bool   `json:"enabled"`
	SitewideEnabled bool   `json:"sitewide_enabled"`
	State           string `json:"state"`
	BackupCodesLeft int    `json:"backup_codes_left"`
}

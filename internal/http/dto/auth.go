// Package dto contains the request/response payloads of the public API.
package dto

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}

// LoginResponse is the result of the first authentication step. When the
// account has a second factor, only ChallengeToken is set.
type LoginResponse struct {
	RequiresSecondFactor bool   `json:"requires_second_factor"`
	ChallengeToken       string `json:"challenge_token,omitempty"`
	SessionToken         string `json:"session_token,omitempty"`
	ExpiresInSeconds     int64  `json:"expires_in_seconds,omitempty"`
}

// ChallengeRequest is the body of POST /v1/auth/mfa/challenge.
// Exactly one of Code / BackupCode should be set.
type ChallengeRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code,omitempty"`
	BackupCode     string `json:"backup_code,omitempty"`
}

// ChallengeResponse carries the session issued after a valid second factor.
type ChallengeResponse struct {
	SessionToken     string `json:"session_token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

package dto

// SessionStatusResponse is the result of GET /v1/session/status.
type SessionStatusResponse struct {
	UserID               string `json:"user_id"`
	IssuedAt             int64  `json:"issued_at"`
	TimeoutSeconds       int64  `json:"timeout_seconds"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds"`
	Expiring             bool   `json:"expiring"`
}

// SessionRefreshResponse carries the replacement session token.
type SessionRefreshResponse struct {
	SessionToken     string `json:"session_token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

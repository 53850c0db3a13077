package api

import "time"

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	SessionID string `json:"session_id"`
}

type revokeOthersRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionTokensResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type loginResponse struct {
	Account accountResponse       `json:"account"`
	Session sessionTokensResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionTokensResponse `json:"session"`
}

type meResponse struct {
	Account accountResponse `json:"account"`
}

type deviceResponse struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Name    string `json:"name,omitempty"`
}

type sessionInfoResponse struct {
	SessionID    string         `json:"session_id"`
	Device       deviceResponse `json:"device"`
	UserAgent    *string        `json:"user_agent,omitempty"`
	IP           *string        `json:"ip,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Current      bool           `json:"current"`
}

type sessionsResponse struct {
	Sessions []sessionInfoResponse `json:"sessions"`
}

type revokedResponse struct {
	Revoked int64 `json:"revoked"`
}

type sweepResponse struct {
	Deleted int64 `json:"deleted"`
}

type sessionStateResponse struct {
	Authenticated bool             `json:"authenticated"`
	Account       *accountResponse `json:"account,omitempty"`
}

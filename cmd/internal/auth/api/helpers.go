package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/account"
	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/session"
)

func toAccountResponse(a account.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

func toSessionTokens(issued *session.Issued) sessionTokensResponse {
	return sessionTokensResponse{
		SessionID:        issued.SessionID,
		AccessToken:      issued.Pair.Access,
		ExpiresIn:        issued.Pair.ExpiresIn,
		RefreshToken:     issued.Pair.Refresh,
		RefreshExpiresAt: issued.Pair.RefreshExpiresAt,
	}
}

func toSessionInfo(s session.Session, currentID string) sessionInfoResponse {
	var ip *string
	if s.IP != nil {
		v := s.IP.String()
		ip = &v
	}
	return sessionInfoResponse{
		SessionID: s.PublicID,
		Device: deviceResponse{
			Browser: s.Device.Browser,
			OS:      s.Device.OS,
			Name:    s.Device.Name,
		},
		UserAgent:    s.UserAgent,
		IP:           ip,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
		Current:      currentID != "" && s.PublicID == currentID,
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

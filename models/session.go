package models

import "time"

// Session is an active authenticated session. Sessions are listed and
// revoked through the policy administration surface.
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Role              string    `json:"role"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
	AuthLevel         string    `json:"authLevel"`
	IPAddress         string    `json:"ipAddress,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	LastSeenAt        time.Time `json:"lastSeenAt"`
	FreshUntil        time.Time `json:"freshUntil"`
	Revoked           bool      `json:"revoked"`
}

// IsFresh reports whether the session still counts as freshly authenticated.
// Actions with RequireFreshSession deny stale sessions regardless of risk.
func (s *Session) IsFresh(now time.Time) bool {
	return !s.Revoked && now.Before(s.FreshUntil)
}

package models

import "time"

// Audit event types.
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventLogout              = "logout"
	EventRememberLogin       = "remember_login"
	EventRateLimitExceeded   = "rate_limit_exceeded"
	EventRateLimiterDegraded = "rate_limiter_degraded"
	EventCSRFFailure         = "csrf_failure"
	EventPasswordRehashed    = "password_rehashed"
	EventUserCreated         = "user_created"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEntry is one append-only record of a security-relevant event.
type AuditEntry struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Actor     string         `json:"actor"`
	Outcome   string         `json:"outcome"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditFilter narrows List queries. Zero values mean "any".
type AuditFilter struct {
	EventType string
	Actor     string
	Since     time.Time
	Until     time.Time
	Limit     int
}

package models

import "time"

// Session is the server-side state behind the session cookie. Token is the
// plain value handed to the client and is never stored; the store only
// knows TokenHash. A session never carries the password hash.
type Session struct {
	ID           string
	Token        string
	TokenHash    string
	UserID       *int64
	Username     string
	DisplayName  string
	Role         string
	Email        string
	LoginTime    *time.Time
	IntendedURL  string
	CSRFToken    string
	CSRFIssuedAt *time.Time
	Remember     bool
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	ExpiresAt    time.Time

	// New is set until the session has been inserted.
	New bool
	// Dirty marks in-memory changes that still need saving.
	Dirty bool
}

// Authenticated reports whether a user is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != nil
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Summary is the view of the signed-in user exposed to other components.
func (s *Session) Summary() *SessionUser {
	if !s.Authenticated() {
		return nil
	}
	return &SessionUser{
		ID:          *s.UserID,
		Username:    s.Username,
		DisplayName: s.DisplayName,
		Role:        s.Role,
		Email:       s.Email,
		LoginTime:   s.LoginTime,
	}
}

type SessionUser struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Email       string     `json:"email"`
	LoginTime   *time.Time `json:"login_time,omitempty"`
}

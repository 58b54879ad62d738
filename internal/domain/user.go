package domain

import "time"

// User is the identity exposed by the session gate as the current user.
type User struct {
	UserID       string            `json:"userId"`
	Email        string            `json:"email"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	PasswordHash string            `json:"-"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// DisplayName returns the name used to greet the user.
func (u *User) DisplayName() string {
	if u == nil || u.FirstName == "" {
		return "Student"
	}
	return u.FirstName
}

// Session is an authenticated browser or API session.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Token      string    `json:"-"`
	ClientAddr string    `json:"client_addr,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

package domain

// Session identifies the caller of a service operation. It is built per request
// from the auth token and passed explicitly; nothing holds a "current user".
type Session struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// NewSession builds a session for an authenticated user
func NewSession(u User) Session {
	return Session{UserID: u.ID, Name: u.Name, Role: u.Role}
}

// IsAdmin reports whether the session belongs to an admin
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

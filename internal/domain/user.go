package domain

import "strings"

// Role distinguishes library staff from borrowers
type Role string

const (
	RoleUser  Role = "USER"  // Student / borrower
	RoleAdmin Role = "ADMIN" // Librarian
)

// ParseRole normalises a role name, reporting whether it is known
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User Model
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`                             // Primary key
	Name      string `gorm:"size:100;not null" json:"name"`                    // Display name
	Email     string `gorm:"size:150;uniqueIndex;not null" json:"email"`       // Unique, stored lower-case
	Password  string `gorm:"not null" json:"-"`                                // bcrypt hash
	Role      Role   `gorm:"size:10;not null;default:USER;index" json:"role"` // USER or ADMIN
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`           // Timestamp of creation in milliseconds
}

// IsAdmin reports whether the user has the ADMIN role
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

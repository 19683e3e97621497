package accounts

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"library_system/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})$`)

// Password bounds. bcrypt ignores input past 72 bytes, so longer passwords are refused.
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

// UserInput is the admin-editable part of an account. On update an empty
// Password keeps the current one.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return domain.Fail(domain.ReasonInvalidInput, "Name cannot be empty")
	case n < 2:
		return domain.Fail(domain.ReasonInvalidInput, "Name must be at least 2 characters long")
	case n > 100:
		return domain.Fail(domain.ReasonInvalidInput, "Name cannot exceed 100 characters")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return domain.Fail(domain.ReasonInvalidInput, "Email cannot be empty")
	case !emailPattern.MatchString(email):
		return domain.Fail(domain.ReasonInvalidInput, "Please enter a valid email address")
	case len(email) > 150:
		return domain.Fail(domain.ReasonInvalidInput, "Email cannot exceed 150 characters")
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return domain.Fail(domain.ReasonInvalidInput, "Password cannot be empty")
	case len(password) < minPasswordLen:
		return domain.Fail(domain.ReasonInvalidInput, "Password must be at least %d characters long", minPasswordLen)
	case len(password) > maxPasswordLen:
		return domain.Fail(domain.ReasonInvalidInput, "Password cannot exceed %d characters", maxPasswordLen)
	}
	return nil
}

func validateRole(role string) (domain.Role, error) {
	if strings.TrimSpace(role) == "" {
		return "", domain.Fail(domain.ReasonInvalidInput, "User type cannot be empty")
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return "", domain.Fail(domain.ReasonInvalidInput, "Invalid user type. Must be 'USER' or 'ADMIN'")
	}
	return r, nil
}

// validate checks every field; the password is skipped when keepPassword is
// set and none was given.
func (in UserInput) validate(keepPassword bool) (domain.Role, error) {
	if err := validateName(in.Name); err != nil {
		return "", err
	}
	if err := validateEmail(in.Email); err != nil {
		return "", err
	}
	if !(keepPassword && in.Password == "") {
		if err := validatePassword(in.Password); err != nil {
			return "", err
		}
	}
	return validateRole(in.Role)
}

// Package accounts manages users: login, admin account management and
// password changes.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"library_system/internal/domain"
	"library_system/internal/store"
	"library_system/internal/utils"
)

// Service manages user accounts
type Service struct {
	store     *store.Store
	jwtSecret string
	log       logrus.FieldLogger
}

// NewService builds the account service
func NewService(st *store.Store, jwtSecret string, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: st, jwtSecret: jwtSecret, log: log}
}

// Authenticate checks the credentials and issues a session token. Unknown
// email and wrong password are reported the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, domain.User, error) {
	email = store.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", domain.User{}, domain.Fail(domain.ReasonInvalidInput, "Email and password are required")
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.log.WithField("email", email).Warn("Login attempt with unknown email")
		return "", domain.User{}, domain.Fail(domain.ReasonInvalidCredentials, "Invalid email or password")
	}
	if err != nil {
		return "", domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(user.Password, password) {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Warn("Login attempt with wrong password")
		return "", domain.User{}, domain.Fail(domain.ReasonInvalidCredentials, "Invalid email or password")
	}

	token, err := utils.GenerateJWT(user.ID, string(user.Role), s.jwtSecret)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("generate token: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User logged in")
	return token, user, nil
}

// SessionFor rebuilds the session of an authenticated user id. A user deleted
// since the token was issued is unauthorized.
func (s *Service) SessionFor(ctx context.Context, userID uint) (domain.Session, error) {
	u, err := s.store.Users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.Fail(domain.ReasonUnauthorized, "User no longer exists")
	}
	if err != nil {
		return domain.Session{}, err
	}
	return domain.NewSession(u), nil
}

// CreateUser adds an account
func (s *Service) CreateUser(ctx context.Context, sess domain.Session, in UserInput) (domain.User, error) {
	if err := adminOnly(sess); err != nil {
		return domain.User{}, err
	}
	role, err := in.validate(false)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.create(ctx, in.Name, in.Email, in.Password, role)
	if err != nil {
		return domain.User{}, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":  u.ID,
		"role":     u.Role,
		"admin_id": sess.UserID,
	}).Info("User created")
	return u, nil
}

func (s *Service) create(ctx context.Context, name, email, password string, role domain.Role) (domain.User, error) {
	exists, err := s.store.Users.EmailExists(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, domain.Fail(domain.ReasonEmailTaken, "Email already exists. Please use a different email address")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{Name: strings.TrimSpace(name), Email: email, Password: hash, Role: role}
	err = s.store.Users.Create(ctx, &u)
	if errors.Is(err, store.ErrDuplicateEmail) {
		return domain.User{}, domain.Fail(domain.ReasonEmailTaken, "Email already exists. Please use a different email address")
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"email": u.Email, "error": err.Error()}).Error("Failed to create user")
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdateUser edits an account. An empty password keeps the current one.
func (s *Service) UpdateUser(ctx context.Context, sess domain.Session, id uint, in UserInput) (domain.User, error) {
	if err := adminOnly(sess); err != nil {
		return domain.User{}, err
	}
	role, err := in.validate(true)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if id == sess.UserID && role != domain.RoleAdmin {
		return domain.User{}, domain.Fail(domain.ReasonForbidden, "You cannot remove your own admin role")
	}

	email := store.NormalizeEmail(in.Email)
	if email != u.Email {
		exists, err := s.store.Users.EmailExists(ctx, email)
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.User{}, domain.Fail(domain.ReasonEmailTaken, "Email already exists. Please use a different email address")
		}
	}
	u.Name, u.Email, u.Role = strings.TrimSpace(in.Name), email, role
	if in.Password != "" {
		if u.Password, err = utils.HashPassword(in.Password); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	err = s.store.Users.Update(ctx, &u)
	if errors.Is(err, store.ErrDuplicateEmail) {
		return domain.User{}, domain.Fail(domain.ReasonEmailTaken, "Email already exists. Please use a different email address")
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"user_id": id, "error": err.Error()}).Error("Failed to update user")
		return domain.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID}).Info("User updated")
	return u, nil
}

// DeleteUser removes an account and its closed history. Admins cannot delete
// themselves and users with pending or issued books are refused.
func (s *Service) DeleteUser(ctx context.Context, sess domain.Session, id uint) error {
	if err := adminOnly(sess); err != nil {
		return err
	}
	if id == sess.UserID {
		return domain.Fail(domain.ReasonSelfDelete, "You cannot delete your own account")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		open, err := tx.Transactions.CountOpenByUser(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.Fail(domain.ReasonInUse, "User has %d pending or issued transaction(s)", open)
		}
		if err := tx.Transactions.DeleteByUser(ctx, id); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Fail(domain.ReasonUserNotFound, "User not found")
	}
	if _, ok := domain.AsFailure(err); ok {
		return err
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"user_id": id, "error": err.Error()}).Error("Failed to delete user")
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID}).Info("User deleted")
	return nil
}

// ChangePassword replaces the caller's password after checking the old one
func (s *Service) ChangePassword(ctx context.Context, sess domain.Session, oldPassword, newPassword string) error {
	u, err := s.store.Users.GetByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Fail(domain.ReasonUserNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if !utils.CheckPassword(u.Password, oldPassword) {
		return domain.Fail(domain.ReasonInvalidCredentials, "Current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if u.Password, err = utils.HashPassword(newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Users.Update(ctx, &u); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": u.ID, "error": err.Error()}).Error("Failed to change password")
		return fmt.Errorf("change password: %w", err)
	}
	s.log.WithField("user_id", u.ID).Info("Password changed")
	return nil
}

// GetUser fetches one account
func (s *Service) GetUser(ctx context.Context, id uint) (domain.User, error) {
	if id == 0 {
		return domain.User{}, domain.Fail(domain.ReasonInvalidInput, "Invalid user ID")
	}
	u, err := s.store.Users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Fail(domain.ReasonUserNotFound, "User not found")
	}
	return u, err
}

// GetUserByEmail fetches one account by address
func (s *Service) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return domain.User{}, domain.Fail(domain.ReasonInvalidInput, "Email cannot be empty")
	}
	u, err := s.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Fail(domain.ReasonUserNotFound, "User not found")
	}
	return u, err
}

// ListUsers returns every account, or those with role when it is set
func (s *Service) ListUsers(ctx context.Context, sess domain.Session, role string) ([]domain.User, error) {
	if err := adminOnly(sess); err != nil {
		return nil, err
	}
	if role == "" {
		return s.store.Users.List(ctx)
	}
	r, err := validateRole(role)
	if err != nil {
		return nil, err
	}
	return s.store.Users.ListByRole(ctx, r)
}

// Counts breaks the user table down by role
type Counts struct {
	Total  int64 `json:"total_users"`
	Admins int64 `json:"admins"`
	Users  int64 `json:"users"`
}

// Counts totals accounts by role
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Total, err = s.store.Users.CountByRole(ctx, ""); err != nil {
		return c, err
	}
	if c.Admins, err = s.store.Users.CountByRole(ctx, domain.RoleAdmin); err != nil {
		return c, err
	}
	c.Users, err = s.store.Users.CountByRole(ctx, domain.RoleUser)
	return c, err
}

// EnsureAdmin creates the bootstrap admin unless the email is already taken.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	in := UserInput{Name: name, Email: email, Password: password, Role: string(domain.RoleAdmin)}
	if _, err := in.validate(false); err != nil {
		return false, err
	}
	u, err := s.create(ctx, name, email, password, domain.RoleAdmin)
	if domain.ReasonOf(err) == domain.ReasonEmailTaken {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("Bootstrap admin created")
	return true, nil
}

func adminOnly(sess domain.Session) error {
	if !sess.IsAdmin() {
		return domain.Fail(domain.ReasonForbidden, "Admin access required")
	}
	return nil
}

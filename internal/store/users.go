package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"library_system/internal/domain"
)

// UserStore persists domain.User rows
type UserStore struct{ db *gorm.DB }

// NormalizeEmail trims and lower-cases an address; emails compare case-insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u and fills its ID
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	u.Email = NormalizeEmail(u.Email)
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByID fetches a user by primary key
func (s *UserStore) GetByID(ctx context.Context, id uint) (domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, notFound(err)
}

// GetByEmail fetches a user by normalised email
func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	return u, notFound(err)
}

// List returns every user ordered by name
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).Order("name").Order("id").Find(&users).Error
	return users, err
}

// ListByRole returns users with the given role ordered by name
func (s *UserStore) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).Where("role = ?", role).Order("name").Order("id").Find(&users).Error
	return users, err
}

// Update saves every column of u
func (s *UserStore) Update(ctx context.Context, u *domain.User) error {
	u.Email = NormalizeEmail(u.Email)
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// Delete removes a user; ErrNotFound when nothing was deleted
func (s *UserStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EmailExists reports whether any user owns the address
func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&n).Error
	return n > 0, err
}

// CountByRole counts users with role; an empty role counts everyone
func (s *UserStore) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&domain.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Count(&n).Error
	return n, err
}

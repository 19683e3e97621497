package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"library_system/internal/domain"
)

// TransactionStore persists domain.Transaction rows. Reads preload the
// borrower and the book so callers can show names and titles.
type TransactionStore struct{ db *gorm.DB }

// Create inserts t and fills its ID
func (s *TransactionStore) Create(ctx context.Context, t *domain.Transaction) error {
	return s.db.WithContext(ctx).Omit("User", "Book").Create(t).Error
}

// GetByID fetches one transaction with its user and book
func (s *TransactionStore) GetByID(ctx context.Context, id uint) (domain.Transaction, error) {
	var t domain.Transaction
	err := s.enriched(ctx).First(&t, id).Error
	return t, notFound(err)
}

// List returns every transaction, newest first
func (s *TransactionStore) List(ctx context.Context) ([]domain.Transaction, error) {
	return s.find(s.enriched(ctx))
}

// ListByStatus returns transactions in one status
func (s *TransactionStore) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Transaction, error) {
	return s.find(s.enriched(ctx).Where("status = ?", status))
}

// ListActive returns books currently issued (approved, not returned)
func (s *TransactionStore) ListActive(ctx context.Context) ([]domain.Transaction, error) {
	return s.find(s.enriched(ctx).Where("status = ? AND return_date IS NULL", domain.StatusApproved))
}

// ListByUser returns every transaction of one borrower
func (s *TransactionStore) ListByUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	return s.find(s.enriched(ctx).Where("user_id = ?", userID))
}

// ListActiveByUser returns the books a borrower currently holds
func (s *TransactionStore) ListActiveByUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	return s.find(s.enriched(ctx).
		Where("user_id = ? AND status = ? AND return_date IS NULL", userID, domain.StatusApproved))
}

func (s *TransactionStore) enriched(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("User").Preload("Book")
}

func (s *TransactionStore) find(q *gorm.DB) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := q.Order("issue_date desc").Order("id desc").Find(&txs).Error
	return txs, err
}

// HasActiveRequest reports whether the user has a PENDING, or an APPROVED and
// unreturned, transaction for the book.
func (s *TransactionStore) HasActiveRequest(ctx context.Context, userID, bookID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Where("status IN ? AND return_date IS NULL", []domain.Status{domain.StatusPending, domain.StatusApproved}).
		Count(&n).Error
	return n > 0, err
}

// CountOpenByBook counts pending or active transactions referencing a book
func (s *TransactionStore) CountOpenByBook(ctx context.Context, bookID uint) (int64, error) {
	return s.countOpen(ctx, "book_id = ?", bookID)
}

// CountOpenByUser counts pending or active transactions of a user
func (s *TransactionStore) CountOpenByUser(ctx context.Context, userID uint) (int64, error) {
	return s.countOpen(ctx, "user_id = ?", userID)
}

func (s *TransactionStore) countOpen(ctx context.Context, cond string, arg any) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where(cond, arg).
		Where("status IN ? AND return_date IS NULL", []domain.Status{domain.StatusPending, domain.StatusApproved}).
		Count(&n).Error
	return n, err
}

// UpdateStatus overwrites the status unconditionally
func (s *TransactionStore) UpdateStatus(ctx context.Context, id uint, status domain.Status) error {
	res := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves a transaction from one status to another only if it
// is still in from. ErrStateChanged means another writer got there first.
func (s *TransactionStore) TransitionStatus(ctx context.Context, id uint, from, to domain.Status) error {
	res := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// SetReturnDate closes an active transaction. It only applies while the
// transaction is APPROVED with no return date; otherwise ErrStateChanged.
func (s *TransactionStore) SetReturnDate(ctx context.Context, id uint, date time.Time) error {
	res := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ? AND return_date IS NULL", id, domain.StatusApproved).
		Update("return_date", date)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Delete removes a transaction; ErrNotFound when nothing was deleted
func (s *TransactionStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Transaction{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByBook removes every transaction referencing a book
func (s *TransactionStore) DeleteByBook(ctx context.Context, bookID uint) error {
	return s.db.WithContext(ctx).Where("book_id = ?", bookID).Delete(&domain.Transaction{}).Error
}

// DeleteByUser removes every transaction of a user
func (s *TransactionStore) DeleteByUser(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Transaction{}).Error
}

// LendingStats aggregates the transaction table
type LendingStats struct {
	TotalTransactions int64 `json:"total_transactions"`
	PendingRequests   int64 `json:"pending_requests"`
	IssuedBooks       int64 `json:"issued_books"`
}

// Stats counts all, pending and currently issued transactions
func (s *TransactionStore) Stats(ctx context.Context) (LendingStats, error) {
	var st LendingStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.Transaction{}).Count(&st.TotalTransactions).Error; err != nil {
		return st, err
	}
	if err := db.Model(&domain.Transaction{}).Where("status = ?", domain.StatusPending).
		Count(&st.PendingRequests).Error; err != nil {
		return st, err
	}
	err := db.Model(&domain.Transaction{}).
		Where("status = ? AND return_date IS NULL", domain.StatusApproved).
		Count(&st.IssuedBooks).Error
	return st, err
}

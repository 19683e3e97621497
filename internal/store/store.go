// Package store holds the gorm repositories for users, books and transactions.
// Every write that must move together with another (status + quantity) is
// expressed as a conditional update so callers can run it inside InTx.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoStock is returned when a conditional decrement found no copy left.
	ErrNoStock = errors.New("no copies available")
	// ErrStateChanged is returned when a conditional transaction update matched
	// no row because the transaction is no longer in the expected state.
	ErrStateChanged = errors.New("transaction state changed")
	// ErrDuplicateEmail is returned when the unique email index rejects a write.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store groups the three repositories over one gorm handle
type Store struct {
	db           *gorm.DB
	Users        *UserStore
	Books        *BookStore
	Transactions *TransactionStore
}

// New wires the repositories to db
func New(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        &UserStore{db: db},
		Books:        &BookStore{db: db},
		Transactions: &TransactionStore{db: db},
	}
}

// InTx runs fn against a Store bound to a single database transaction.
// Returning an error from fn rolls back every write made through it.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isDuplicateKey recognises unique violations from MySQL (1062) and SQLite
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique constraint failed")
}

func likeTerm(term string) string {
	return "%" + strings.TrimSpace(term) + "%"
}

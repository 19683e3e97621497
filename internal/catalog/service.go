// Package catalog manages the book catalog: validation, duplicate checks,
// search and the cached listings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"library_system/internal/domain"
	"library_system/internal/store"
	"library_system/internal/utils"
)

// Cache keys for the listings
const (
	KeyAllBooks       = "books:all"
	KeyAvailableBooks = "books:available"
)

// BookInput is the editable part of a book
type BookInput struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Floor    int    `json:"floor"`
	Shelf    string `json:"shelf"`
}

func (in BookInput) normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	in.Shelf = strings.TrimSpace(in.Shelf)
	return in
}

// Validate checks lengths and ranges
func (in BookInput) Validate() error {
	if err := requireText("Title", in.Title, 200); err != nil {
		return err
	}
	if err := requireText("Author", in.Author, 150); err != nil {
		return err
	}
	if err := requireText("Category", in.Category, 100); err != nil {
		return err
	}
	if in.Quantity < 0 {
		return domain.Fail(domain.ReasonInvalidInput, "Quantity cannot be negative")
	}
	if in.Floor <= 0 {
		return domain.Fail(domain.ReasonInvalidInput, "Floor must be a positive number")
	}
	return requireText("Shelf", in.Shelf, 50)
}

func requireText(field, v string, max int) error {
	if v == "" {
		return domain.Fail(domain.ReasonInvalidInput, "%s cannot be empty", field)
	}
	if utf8.RuneCountInString(v) > max {
		return domain.Fail(domain.ReasonInvalidInput, "%s cannot exceed %d characters", field, max)
	}
	return nil
}

// Query selects books. Term searches title, author and category together;
// the field terms narrow one column each. Only the first non-empty of Term,
// Title, Author and Category is applied.
type Query struct {
	Term          string
	Title         string
	Author        string
	Category      string
	AvailableOnly bool
}

// Service is the catalog
type Service struct {
	store *store.Store
	cache *utils.Cache
	log   logrus.FieldLogger
}

// NewService builds a catalog; cache may be nil
func NewService(st *store.Store, cache *utils.Cache, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: st, cache: cache, log: log}
}

// CreateBook adds a book after validation and the duplicate title/author check
func (s *Service) CreateBook(ctx context.Context, sess domain.Session, in BookInput) (domain.Book, error) {
	if err := adminOnly(sess); err != nil {
		return domain.Book{}, err
	}
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return domain.Book{}, err
	}
	dup, err := s.store.Books.ExistsByTitleAuthor(ctx, in.Title, in.Author, 0)
	if err != nil {
		return domain.Book{}, fmt.Errorf("check duplicate book: %w", err)
	}
	if dup {
		return domain.Book{}, domain.Fail(domain.ReasonDuplicateBook, "A book with this title and author already exists")
	}

	b := domain.Book{
		Title:    in.Title,
		Author:   in.Author,
		Category: in.Category,
		Quantity: in.Quantity,
		Floor:    in.Floor,
		Shelf:    in.Shelf,
	}
	if err := s.store.Books.Create(ctx, &b); err != nil {
		s.log.WithFields(logrus.Fields{"title": in.Title, "error": err.Error()}).Error("Failed to create book")
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"book_id":  b.ID,
		"title":    b.Title,
		"quantity": b.Quantity,
		"admin_id": sess.UserID,
	}).Info("Book added")
	s.InvalidateBooks(ctx)
	return b, nil
}

// UpdateBook replaces every editable field of a book
func (s *Service) UpdateBook(ctx context.Context, sess domain.Session, id uint, in BookInput) (domain.Book, error) {
	if err := adminOnly(sess); err != nil {
		return domain.Book{}, err
	}
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return domain.Book{}, err
	}
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	dup, err := s.store.Books.ExistsByTitleAuthor(ctx, in.Title, in.Author, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("check duplicate book: %w", err)
	}
	if dup {
		return domain.Book{}, domain.Fail(domain.ReasonDuplicateBook, "A book with this title and author already exists")
	}

	b.Title, b.Author, b.Category = in.Title, in.Author, in.Category
	b.Quantity, b.Floor, b.Shelf = in.Quantity, in.Floor, in.Shelf
	if err := s.store.Books.Update(ctx, &b); err != nil {
		s.log.WithFields(logrus.Fields{"book_id": id, "error": err.Error()}).Error("Failed to update book")
		return domain.Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{"book_id": id, "admin_id": sess.UserID}).Info("Book updated")
	s.InvalidateBooks(ctx)
	return b, nil
}

// UpdateQuantity sets the number of copies on the shelf
func (s *Service) UpdateQuantity(ctx context.Context, sess domain.Session, id uint, qty int) (domain.Book, error) {
	if err := adminOnly(sess); err != nil {
		return domain.Book{}, err
	}
	if qty < 0 {
		return domain.Book{}, domain.Fail(domain.ReasonInvalidInput, "Quantity cannot be negative")
	}
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if err := s.store.Books.UpdateQuantity(ctx, id, qty); err != nil {
		s.log.WithFields(logrus.Fields{"book_id": id, "error": err.Error()}).Error("Failed to update quantity")
		return domain.Book{}, fmt.Errorf("update quantity of book %d: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{
		"book_id":  id,
		"from":     b.Quantity,
		"to":       qty,
		"admin_id": sess.UserID,
	}).Info("Book quantity updated")
	b.Quantity = qty
	s.InvalidateBooks(ctx)
	return b, nil
}

// DeleteBook removes a book and its closed transaction history. Books with
// pending or issued transactions are refused.
func (s *Service) DeleteBook(ctx context.Context, sess domain.Session, id uint) error {
	if err := adminOnly(sess); err != nil {
		return err
	}
	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		open, err := tx.Transactions.CountOpenByBook(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.Fail(domain.ReasonInUse, "Book has %d pending or issued transaction(s)", open)
		}
		if err := tx.Transactions.DeleteByBook(ctx, id); err != nil {
			return err
		}
		return tx.Books.Delete(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Fail(domain.ReasonBookNotFound, "Book not found")
	}
	if _, ok := domain.AsFailure(err); ok {
		return err
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"book_id": id, "error": err.Error()}).Error("Failed to delete book")
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{"book_id": id, "admin_id": sess.UserID}).Info("Book deleted")
	s.InvalidateBooks(ctx)
	return nil
}

// GetBook fetches one book
func (s *Service) GetBook(ctx context.Context, id uint) (domain.Book, error) {
	b, err := s.store.Books.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Book{}, domain.Fail(domain.ReasonBookNotFound, "Book not found")
	}
	return b, err
}

// IsAvailable reports whether a copy of the book is on the shelf
func (s *Service) IsAvailable(ctx context.Context, id uint) (bool, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return false, err
	}
	return b.IsAvailable(), nil
}

// ListBooks returns the whole catalog, from cache when possible
func (s *Service) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.cached(ctx, KeyAllBooks, s.store.Books.List)
}

// ListAvailable returns books with a copy on the shelf, from cache when possible
func (s *Service) ListAvailable(ctx context.Context) ([]domain.Book, error) {
	return s.cached(ctx, KeyAvailableBooks, s.store.Books.ListAvailable)
}

// Search runs q against the store. Searches are not cached.
func (s *Service) Search(ctx context.Context, q Query) ([]domain.Book, error) {
	var (
		books []domain.Book
		err   error
	)
	switch {
	case strings.TrimSpace(q.Term) != "":
		books, err = s.store.Books.Search(ctx, strings.TrimSpace(q.Term))
	case strings.TrimSpace(q.Title) != "":
		books, err = s.store.Books.SearchByTitle(ctx, strings.TrimSpace(q.Title))
	case strings.TrimSpace(q.Author) != "":
		books, err = s.store.Books.SearchByAuthor(ctx, strings.TrimSpace(q.Author))
	case strings.TrimSpace(q.Category) != "":
		books, err = s.store.Books.SearchByCategory(ctx, strings.TrimSpace(q.Category))
	case q.AvailableOnly:
		return s.ListAvailable(ctx)
	default:
		return s.ListBooks(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !q.AvailableOnly {
		return books, nil
	}
	available := books[:0]
	for _, b := range books {
		if b.IsAvailable() {
			available = append(available, b)
		}
	}
	return available, nil
}

// Stats counts titles and copies
func (s *Service) Stats(ctx context.Context) (store.CatalogStats, error) {
	return s.store.Books.Stats(ctx)
}

// InvalidateBooks drops the cached listings
func (s *Service) InvalidateBooks(ctx context.Context) {
	s.cache.Delete(ctx, KeyAllBooks, KeyAvailableBooks)
}

func (s *Service) cached(ctx context.Context, key string, load func(context.Context) ([]domain.Book, error)) ([]domain.Book, error) {
	var books []domain.Book
	if s.cache.Get(ctx, key, &books) {
		return books, nil
	}
	books, err := load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, books)
	return books, nil
}

func adminOnly(sess domain.Session) error {
	if !sess.IsAdmin() {
		return domain.Fail(domain.ReasonForbidden, "Admin access required")
	}
	return nil
}

package store

import (
	"context"

	"gorm.io/gorm"

	"library_system/internal/domain"
)

// BookStore persists domain.Book rows
type BookStore struct{ db *gorm.DB }

// Create inserts b and fills its ID
func (s *BookStore) Create(ctx context.Context, b *domain.Book) error {
	return s.db.WithContext(ctx).Create(b).Error
}

// GetByID fetches a book by primary key
func (s *BookStore) GetByID(ctx context.Context, id uint) (domain.Book, error) {
	var b domain.Book
	err := s.db.WithContext(ctx).First(&b, id).Error
	return b, notFound(err)
}

// List returns the whole catalog ordered by title
func (s *BookStore) List(ctx context.Context) ([]domain.Book, error) {
	return s.find(ctx, s.db)
}

// ListAvailable returns books with at least one copy on the shelf
func (s *BookStore) ListAvailable(ctx context.Context) ([]domain.Book, error) {
	return s.find(ctx, s.db.Where("quantity > 0"))
}

// SearchByTitle matches a case-insensitive substring of the title
func (s *BookStore) SearchByTitle(ctx context.Context, term string) ([]domain.Book, error) {
	return s.find(ctx, s.db.Where("UPPER(title) LIKE UPPER(?)", likeTerm(term)))
}

// SearchByAuthor matches a case-insensitive substring of the author
func (s *BookStore) SearchByAuthor(ctx context.Context, term string) ([]domain.Book, error) {
	return s.find(ctx, s.db.Where("UPPER(author) LIKE UPPER(?)", likeTerm(term)))
}

// SearchByCategory matches a case-insensitive substring of the category
func (s *BookStore) SearchByCategory(ctx context.Context, term string) ([]domain.Book, error) {
	return s.find(ctx, s.db.Where("UPPER(category) LIKE UPPER(?)", likeTerm(term)))
}

// Search matches the term against title, author or category
func (s *BookStore) Search(ctx context.Context, term string) ([]domain.Book, error) {
	like := likeTerm(term)
	return s.find(ctx, s.db.Where(
		"UPPER(title) LIKE UPPER(?) OR UPPER(author) LIKE UPPER(?) OR UPPER(category) LIKE UPPER(?)",
		like, like, like,
	))
}

func (s *BookStore) find(ctx context.Context, q *gorm.DB) ([]domain.Book, error) {
	var books []domain.Book
	err := q.WithContext(ctx).Order("title").Order("id").Find(&books).Error
	return books, err
}

// Update saves every column of b
func (s *BookStore) Update(ctx context.Context, b *domain.Book) error {
	return s.db.WithContext(ctx).Save(b).Error
}

// UpdateQuantity overwrites the shelf count
func (s *BookStore) UpdateQuantity(ctx context.Context, id uint, qty int) error {
	return s.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ?", id).
		Update("quantity", qty).Error
}

// DecrementIfAvailable takes one copy off the shelf only while quantity > 0.
// ErrNoStock means the guard rejected the write and nothing changed.
func (s *BookStore) DecrementIfAvailable(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ? AND quantity > 0", id).
		Update("quantity", gorm.Expr("quantity - ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoStock
	}
	return nil
}

// Increment puts one copy back on the shelf
func (s *BookStore) Increment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a book; ErrNotFound when nothing was deleted
func (s *BookStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByTitleAuthor reports whether another book has the same title and
// author, compared case-insensitively. excludeID skips the book being edited.
func (s *BookStore) ExistsByTitleAuthor(ctx context.Context, title, author string, excludeID uint) (bool, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&domain.Book{}).
		Where("UPPER(title) = UPPER(?) AND UPPER(author) = UPPER(?)", title, author)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// CatalogStats aggregates the catalog
type CatalogStats struct {
	TotalBooks     int64 `json:"total_books"`
	AvailableBooks int64 `json:"available_books"`
	TotalQuantity  int64 `json:"total_quantity"`
}

// Stats counts titles, available titles and copies on the shelf
func (s *BookStore) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.Book{}).Count(&st.TotalBooks).Error; err != nil {
		return st, err
	}
	if err := db.Model(&domain.Book{}).Where("quantity > 0").Count(&st.AvailableBooks).Error; err != nil {
		return st, err
	}
	err := db.Model(&domain.Book{}).Select("COALESCE(SUM(quantity), 0)").Scan(&st.TotalQuantity).Error
	return st, err
}

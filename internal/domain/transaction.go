package domain

import (
	"strings"
	"time"
)

// Status of a lending transaction
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)

// ParseStatus normalises a status name, reporting whether it is known
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusDenied:
		return st, true
	}
	return "", false
}

// Transaction Model. A request starts PENDING, is APPROVED or DENIED by an admin,
// and an APPROVED transaction is closed by setting ReturnDate.
type Transaction struct {
	ID         uint       `gorm:"primaryKey" json:"id"`                            // Primary key
	UserID     uint       `gorm:"not null;index:idx_tx_user_book" json:"user_id"` // Borrower
	BookID     uint       `gorm:"not null;index:idx_tx_user_book" json:"book_id"` // Requested book
	Status     Status     `gorm:"size:10;not null;index" json:"status"`           // PENDING, APPROVED or DENIED
	IssueDate  time.Time  `gorm:"not null" json:"issue_date"`                     // Set when the request is made
	ReturnDate *time.Time `json:"return_date"`                                    // Nil until returned
	User       *User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Book       *Book      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

func (t Transaction) IsPending() bool  { return t.Status == StatusPending }
func (t Transaction) IsApproved() bool { return t.Status == StatusApproved }
func (t Transaction) IsDenied() bool   { return t.Status == StatusDenied }

// IsActive reports whether the book is currently issued (approved, not returned)
func (t Transaction) IsActive() bool { return t.IsApproved() && t.ReturnDate == nil }

// IsOpen reports whether the transaction blocks another request for the same book
func (t Transaction) IsOpen() bool { return t.IsPending() || t.IsActive() }

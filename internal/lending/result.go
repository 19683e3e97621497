package lending

import (
	"time"

	"library_system/internal/domain"
)

// View is a transaction enriched for display: borrower and book names plus
// the fine position as of the time it was built.
type View struct {
	domain.Transaction
	UserName   string                `json:"user_name"`
	BookTitle  string                `json:"book_title"`
	BookAuthor string                `json:"book_author"`
	Fine       domain.FineAssessment `json:"fine"`
}

// ReturnReceipt describes a completed return. FineCollected is recorded for
// audit only; the book is accepted back either way.
type ReturnReceipt struct {
	ReturnDate    time.Time `json:"return_date"`
	OverdueDays   int       `json:"overdue_days"`
	Fine          float64   `json:"fine"`
	FineCollected bool      `json:"fine_collected"`
}

// Result is the outcome of a lifecycle operation. A zero Reason means success.
// Infrastructure failures are never reported here; they come back as error.
type Result struct {
	Reason      domain.Reason  `json:"reason,omitempty"`
	Message     string         `json:"message"`
	Transaction *View          `json:"transaction,omitempty"`
	Receipt     *ReturnReceipt `json:"receipt,omitempty"`
}

// OK reports success
func (r Result) OK() bool { return r.Reason == "" }

// Err converts a refusal into a *domain.Failure, nil on success
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.Failure{Reason: r.Reason, Message: r.Message}
}

func refuse(reason domain.Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}

// IssuedReport lists issued books with their fines and totals
type IssuedReport struct {
	Transactions []View  `json:"transactions"`
	TotalIssued  int     `json:"total_issued"`
	OverdueCount int     `json:"overdue_count"`
	TotalFines   float64 `json:"total_fines"`
}

package domain

import (
	"fmt"
	"time"
)

// Policy defaults
const (
	DefaultLoanPeriodDays = 7
	DefaultFinePerDay     = 10.0
)

// LoanPolicy holds the due-date and fine constants
type LoanPolicy struct {
	LoanPeriodDays int     `json:"loan_period_days"`
	FinePerDay     float64 `json:"fine_per_day"`
}

// DefaultLoanPolicy returns the 7 day / 10 per day policy
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{LoanPeriodDays: DefaultLoanPeriodDays, FinePerDay: DefaultFinePerDay}
}

// FineAssessment is the fine view of one transaction as of a given day
type FineAssessment struct {
	DueDate     time.Time `json:"due_date"`
	OverdueDays int       `json:"overdue_days"`
	Fine        float64   `json:"fine"`
	IsActive    bool      `json:"is_active"`
	IsOverdue   bool      `json:"is_overdue"`
	FineStatus  string    `json:"fine_status"`
}

// DueDate is the issue day plus the loan period, in calendar days
func (p LoanPolicy) DueDate(issueDate time.Time) time.Time {
	return civilDay(issueDate).AddDate(0, 0, p.LoanPeriodDays)
}

// OverdueDays counts whole days past the due date. Only active transactions
// accrue; the count is zero on the due date itself.
func (p LoanPolicy) OverdueDays(t Transaction, today time.Time) int {
	if !t.IsActive() {
		return 0
	}
	due := p.DueDate(t.IssueDate)
	if !civilDay(today).After(due) {
		return 0
	}
	return daysBetween(due, today)
}

// Fine is OverdueDays times the per-day rate
func (p LoanPolicy) Fine(t Transaction, today time.Time) float64 {
	return float64(p.OverdueDays(t, today)) * p.FinePerDay
}

// Assess computes the full fine view. Nothing here is persisted.
func (p LoanPolicy) Assess(t Transaction, today time.Time) FineAssessment {
	days := p.OverdueDays(t, today)
	a := FineAssessment{
		DueDate:     p.DueDate(t.IssueDate),
		OverdueDays: days,
		Fine:        float64(days) * p.FinePerDay,
		IsActive:    t.IsActive(),
		IsOverdue:   days > 0,
	}
	switch {
	case !a.IsActive:
		a.FineStatus = "N/A"
	case a.IsOverdue:
		a.FineStatus = fmt.Sprintf("OVERDUE %d day(s), fine %.2f", days, a.Fine)
	default:
		a.FineStatus = "NO FINE"
	}
	return a
}

// civilDay is the UTC calendar day of t, whatever zone t carries
func civilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(civilDay(to).Sub(civilDay(from)).Hours() / 24)
}
